package gateway

import (
	"fmt"

	"payment-gateway/internal/config"
	internalErrors "payment-gateway/internal/errors"
)

// Registry is the closed set of processors, kept in preference order:
// default first, fallback second.
type Registry struct {
	byName map[string]PaymentProcessorInterface
	order  []string
}

func NewRegistry(defaultProcessor, fallbackProcessor PaymentProcessorInterface) *Registry {
	return &Registry{
		byName: map[string]PaymentProcessorInterface{
			config.ProcessorDefault:  defaultProcessor,
			config.ProcessorFallback: fallbackProcessor,
		},
		order: []string{config.ProcessorDefault, config.ProcessorFallback},
	}
}

func (r *Registry) Get(name string) (PaymentProcessorInterface, error) {
	p, ok := r.byName[name]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %q", internalErrors.ErrUnknownProcessor, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
