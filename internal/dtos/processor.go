package dtos

import (
	"time"

	"github.com/shopspring/decimal"
)

type HealthCheckResponse struct {
	Failing         bool `json:"failing"`
	MinResponseTime uint `json:"minResponseTime"`
}

type PaymentProcessorRequest struct {
	CorrelationId string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   string          `json:"requestedAt"`
}

type PaymentProcessorResponse struct {
	Message string `json:"message"`
}

type PaymentDetails struct {
	CorrelationId string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
}
