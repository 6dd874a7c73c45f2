package services

import (
	"context"

	"payment-gateway/internal/breaker"
	"payment-gateway/internal/dtos"
	"payment-gateway/internal/entities"
	"payment-gateway/internal/gateway"

	"github.com/shopspring/decimal"
)

type PaymentsInterface interface {
	RequestProcessing(ctx context.Context, correlationId string, amount decimal.Decimal) error
	GetSummary(ctx context.Context, filters dtos.GetPaymentsSummaryFilters) (*entities.PaymentsSummary, error)
	Breakers(ctx context.Context) []breaker.CircuitBreakerState
	PaymentDetails(ctx context.Context, processor, correlationId string) (*dtos.PaymentDetails, error)
	Clear(ctx context.Context) error
}

type ProcessorManagerInterface interface {
	Select(ctx context.Context) (string, gateway.PaymentProcessorInterface, error)
	Report(ctx context.Context, name string, success bool)
	Breakers(ctx context.Context) []breaker.CircuitBreakerState
	Details(ctx context.Context, name, correlationId string) (*dtos.PaymentDetails, error)
	Clear(ctx context.Context) error
}
