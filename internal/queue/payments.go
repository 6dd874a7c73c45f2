package queue

import (
	"context"
	"errors"
	"time"

	"payment-gateway/internal/dtos"
	internalErrors "payment-gateway/internal/errors"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

const (
	queueKey      = "payments:queue"
	deadLetterKey = "payments:dead"
)

// PaymentQueue is a FIFO list in redis: producers RPUSH to the tail and
// workers LPOP from the head. LPOP removes and returns in one command, so
// two workers never receive the same entry.
type PaymentQueue struct {
	rc *redis.Client
}

func NewPaymentQueue(rc *redis.Client) *PaymentQueue {
	return &PaymentQueue{
		rc: rc,
	}
}

func (pq *PaymentQueue) push(ctx context.Context, p *dtos.Payment) error {
	payload, err := dtos.EncodePayment(p)
	if err != nil {
		return &internalErrors.SerializationError{What: "payment", Err: err}
	}

	if err := pq.rc.RPush(ctx, queueKey, payload).Err(); err != nil {
		return &internalErrors.TransportError{Op: "RPUSH", Target: queueKey, Err: err}
	}
	return nil
}

func (pq *PaymentQueue) Enqueue(ctx context.Context, p *dtos.Payment) error {
	return pq.push(ctx, p)
}

// Dequeue pops the head of the queue. An empty queue is
// ErrNoPaymentsInQueue; an entry that does not decode is returned as a
// SerializationError carrying the raw payload, already removed from the queue.
func (pq *PaymentQueue) Dequeue(ctx context.Context) (*dtos.Payment, error) {
	raw, err := pq.rc.LPop(ctx, queueKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, internalErrors.ErrNoPaymentsInQueue
		}
		return nil, &internalErrors.TransportError{Op: "LPOP", Target: queueKey, Err: err}
	}

	return dtos.DecodePayment(raw)
}

// Requeue puts a payment back at the tail for a later attempt.
func (pq *PaymentQueue) Requeue(ctx context.Context, p *dtos.Payment) error {
	return pq.push(ctx, p)
}

type deadLetter struct {
	Payload string    `json:"payload"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

func (pq *PaymentQueue) DeadLetter(ctx context.Context, raw []byte, reason string) error {
	entry, err := json.Marshal(deadLetter{
		Payload: string(raw),
		Reason:  reason,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := pq.rc.RPush(ctx, deadLetterKey, entry).Err(); err != nil {
		return &internalErrors.TransportError{Op: "RPUSH", Target: deadLetterKey, Err: err}
	}
	return nil
}

func (pq *PaymentQueue) Len(ctx context.Context) (int64, error) {
	n, err := pq.rc.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, &internalErrors.TransportError{Op: "LLEN", Target: queueKey, Err: err}
	}
	return n, nil
}

func (pq *PaymentQueue) DeadLetterLen(ctx context.Context) (int64, error) {
	n, err := pq.rc.LLen(ctx, deadLetterKey).Result()
	if err != nil {
		return 0, &internalErrors.TransportError{Op: "LLEN", Target: deadLetterKey, Err: err}
	}
	return n, nil
}

func (pq *PaymentQueue) Clear(ctx context.Context) error {
	return pq.rc.Del(ctx, queueKey, deadLetterKey).Err()
}
