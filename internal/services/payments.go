package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-gateway/internal/accounting"
	"payment-gateway/internal/breaker"
	"payment-gateway/internal/dtos"
	"payment-gateway/internal/entities"
	internalErrors "payment-gateway/internal/errors"
	"payment-gateway/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService is what the HTTP surface talks to: it accepts payments for
// asynchronous delivery and reads the ledger back.
type PaymentService struct {
	pm     ProcessorManagerInterface
	q      queue.PaymentQueueInterface
	ledger accounting.Ledger
	now    func() time.Time
}

func NewPaymentService(
	pm ProcessorManagerInterface,
	q queue.PaymentQueueInterface,
	ledger accounting.Ledger,
) *PaymentService {
	return &PaymentService{
		pm:     pm,
		q:      q,
		ledger: ledger,
		now:    time.Now,
	}
}

func (ps *PaymentService) RequestProcessing(ctx context.Context, correlationId string, amount decimal.Decimal) error {
	if _, err := uuid.Parse(correlationId); err != nil {
		return fmt.Errorf("%w: correlationId must be a uuid", internalErrors.ErrInvalidPayment)
	}

	payment := &dtos.Payment{
		CorrelationId: correlationId,
		Amount:        amount,
		RequestedAt:   ps.now().UTC(),
	}
	if err := payment.Validate(); err != nil {
		return fmt.Errorf("%w: %s", internalErrors.ErrInvalidPayment, err)
	}

	return ps.q.Enqueue(ctx, payment)
}

func (ps *PaymentService) GetSummary(ctx context.Context, filters dtos.GetPaymentsSummaryFilters) (*entities.PaymentsSummary, error) {
	return ps.ledger.Summary(ctx, filters.From, filters.To)
}

func (ps *PaymentService) Breakers(ctx context.Context) []breaker.CircuitBreakerState {
	return ps.pm.Breakers(ctx)
}

func (ps *PaymentService) PaymentDetails(ctx context.Context, processor, correlationId string) (*dtos.PaymentDetails, error) {
	return ps.pm.Details(ctx, processor, correlationId)
}

func (ps *PaymentService) Clear(ctx context.Context) error {
	if err := ps.q.Clear(ctx); err != nil {
		return errors.New("cannot purge payments queue: " + err.Error())
	}

	if err := ps.ledger.Clear(ctx); err != nil {
		return errors.New("cannot purge payments ledger: " + err.Error())
	}

	return ps.pm.Clear(ctx)
}
