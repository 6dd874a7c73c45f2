package services

import (
	"context"
	"fmt"

	"payment-gateway/internal/breaker"
	"payment-gateway/internal/dtos"
	internalErrors "payment-gateway/internal/errors"
	"payment-gateway/internal/gateway"
)

// ProcessorManager routes by breaker state only. Default always wins when
// its breaker allows requests; there is no balancing between healthy
// processors.
type ProcessorManager struct {
	breakers   *breaker.Store
	processors *gateway.Registry
	purgeToken string
}

func NewProcessorManager(
	breakers *breaker.Store,
	processors *gateway.Registry,
	purgeToken string,
) *ProcessorManager {
	return &ProcessorManager{
		breakers:   breakers,
		processors: processors,
		purgeToken: purgeToken,
	}
}

func (pm *ProcessorManager) Select(ctx context.Context) (string, gateway.PaymentProcessorInterface, error) {
	for _, name := range pm.processors.Names() {
		if !breaker.IsRequestAllowed(pm.breakers.Load(ctx, name)) {
			continue
		}

		processor, err := pm.processors.Get(name)
		if err != nil {
			return "", nil, err
		}
		return name, processor, nil
	}

	return "", nil, internalErrors.ErrNoPaymentProcessorAvailable
}

func (pm *ProcessorManager) Report(ctx context.Context, name string, success bool) {
	pm.breakers.Report(ctx, name, success)
}

func (pm *ProcessorManager) Breakers(ctx context.Context) []breaker.CircuitBreakerState {
	return pm.breakers.List(ctx, pm.processors.Names())
}

func (pm *ProcessorManager) Details(ctx context.Context, name, correlationId string) (*dtos.PaymentDetails, error) {
	processor, err := pm.processors.Get(name)
	if err != nil {
		return nil, err
	}
	return processor.PaymentDetails(ctx, correlationId)
}

func (pm *ProcessorManager) Clear(ctx context.Context) error {
	for _, name := range pm.processors.Names() {
		processor, err := pm.processors.Get(name)
		if err != nil {
			return err
		}
		if err := processor.Purge(ctx, pm.purgeToken); err != nil {
			return fmt.Errorf("cannot purge %s processor payments: %w", name, err)
		}
	}

	return nil
}
