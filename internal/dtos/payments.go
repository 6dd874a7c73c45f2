package dtos

import (
	"errors"
	"time"

	internalErrors "payment-gateway/internal/errors"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func init() {
	// processors expect amounts as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type CreatePaymentRequest struct {
	CorrelationId string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
}

type GetPaymentsSummaryFilters struct {
	From time.Time
	To   time.Time
}

type GetPaymentSummaryResponse struct {
	Default  PaymentSummary `json:"default"`
	Fallback PaymentSummary `json:"fallback"`
}

type PaymentSummary struct {
	TotalRequests int64           `json:"totalRequests"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// Payment is a payment intent as it travels through the queue. Intake stamps
// RequestedAt; dispatch only fills it in for entries that arrive without one.
type Payment struct {
	CorrelationId string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
	RetryCount    int             `json:"retryCount,omitempty"`
}

func (p *Payment) Validate() error {
	if p.CorrelationId == "" {
		return errors.New("correlationId is required")
	}
	if !p.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	return nil
}

// Stamp sets RequestedAt unless it is already set.
func (p *Payment) Stamp(now time.Time) {
	if p.RequestedAt.IsZero() {
		p.RequestedAt = now.UTC()
	}
}

func EncodePayment(p *Payment) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayment parses a queued payload. Payloads that do not decode or that
// describe an invalid intent come back as a SerializationError since no
// amount of retrying can make them succeed.
func DecodePayment(raw []byte) (*Payment, error) {
	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &internalErrors.SerializationError{What: "payment", Payload: raw, Err: err}
	}

	if err := p.Validate(); err != nil {
		return nil, &internalErrors.SerializationError{What: "payment", Payload: raw, Err: err}
	}

	return &p, nil
}
