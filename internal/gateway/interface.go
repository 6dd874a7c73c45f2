package gateway

import (
	"context"

	"payment-gateway/internal/dtos"
)

type PaymentProcessorInterface interface {
	Name() string
	SendPayment(ctx context.Context, payment dtos.Payment) (*dtos.PaymentProcessorResponse, error)
	HealthCheck(ctx context.Context) (*dtos.HealthCheckResponse, error)
	PaymentDetails(ctx context.Context, correlationId string) (*dtos.PaymentDetails, error)
	Purge(ctx context.Context, token string) error
}
