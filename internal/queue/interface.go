package queue

import (
	"context"

	"payment-gateway/internal/dtos"
)

type PaymentQueueInterface interface {
	Enqueue(ctx context.Context, p *dtos.Payment) error
	Dequeue(ctx context.Context) (*dtos.Payment, error)
	Requeue(ctx context.Context, p *dtos.Payment) error
	DeadLetter(ctx context.Context, raw []byte, reason string) error
	Len(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}
