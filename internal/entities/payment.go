package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentsSummary struct {
	Default  PaymentStats
	Fallback PaymentStats
}

type PaymentStats struct {
	TotalRequests int64
	TotalAmount   decimal.Decimal
}

// Add folds one acknowledged dispatch into the stats of its processor.
func (s *PaymentsSummary) Add(d Dispatch) {
	switch d.Processor {
	case "default":
		s.Default.TotalRequests++
		s.Default.TotalAmount = s.Default.TotalAmount.Add(d.Amount)
	case "fallback":
		s.Fallback.TotalRequests++
		s.Fallback.TotalAmount = s.Fallback.TotalAmount.Add(d.Amount)
	}
}

// Dispatch is the accounting signal emitted once a processor acknowledged a
// payment.
type Dispatch struct {
	Processor     string          `json:"processor"`
	CorrelationId string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
}
