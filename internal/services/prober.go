package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"payment-gateway/internal/breaker"
	internalErrors "payment-gateway/internal/errors"
	"payment-gateway/internal/gateway"
)

// HealthProber keeps one processor's breaker in line with what its health
// endpoint reports, independently of payment traffic.
type HealthProber struct {
	processor gateway.PaymentProcessorInterface
	breakers  *breaker.Store
	interval  time.Duration
	timeout   time.Duration
	cooldown  time.Duration
	log       *slog.Logger
}

func NewHealthProber(
	processor gateway.PaymentProcessorInterface,
	breakers *breaker.Store,
	interval, timeout, cooldown time.Duration,
	log *slog.Logger,
) *HealthProber {
	return &HealthProber{
		processor: processor,
		breakers:  breakers,
		interval:  interval,
		timeout:   timeout,
		cooldown:  cooldown,
		log:       log.With("component", "prober", "processor", processor.Name()),
	}
}

// RunOnce runs a single probe cycle and returns the state it persisted.
// While the breaker is Open and the cooldown has not elapsed the processor
// is not contacted at all.
func (hp *HealthProber) RunOnce(ctx context.Context) breaker.CircuitBreakerState {
	name := hp.processor.Name()
	state := hp.breakers.Load(ctx, name)

	if !breaker.IsRequestAllowed(state) {
		promoted, ok := breaker.Promote(state, hp.breakers.Now(), hp.cooldown)
		if !ok {
			return state
		}
		hp.log.Info("cooldown elapsed, probing half-open processor")
		state = promoted
	}

	probeCtx, cancel := context.WithTimeout(ctx, hp.timeout)
	health, err := hp.processor.HealthCheck(probeCtx)
	cancel()

	success := err == nil && !health.Failing
	switch {
	case errors.Is(err, internalErrors.ErrRateLimited):
		hp.log.Warn("health check rate limited, counting as failure", "error", err)
	case err != nil:
		hp.log.Warn("health check failed", "error", err)
	case health.Failing:
		hp.log.Warn("processor reports failing", "minResponseTime", health.MinResponseTime)
	}

	next := breaker.OnRequestResult(state, success, hp.breakers.Now())
	if next.State != state.State {
		hp.log.Info("circuit state changed", "from", state.State, "to", next.State)
	}
	_ = hp.breakers.Save(ctx, next)

	return next
}

// Run probes every interval until ctx is cancelled. A cycle that already
// started is allowed to finish.
func (hp *HealthProber) Run(ctx context.Context) {
	hp.log.Info("health prober started", "interval", hp.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			hp.log.Info("health prober stopping")
			return
		case <-timer.C:
			hp.RunOnce(context.WithoutCancel(ctx))
			timer.Reset(hp.interval)
		}
	}
}
