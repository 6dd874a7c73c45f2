package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"payment-gateway/internal/accounting"
	"payment-gateway/internal/dtos"
	"payment-gateway/internal/entities"
	internalErrors "payment-gateway/internal/errors"
	"payment-gateway/internal/queue"
)

type Outcome string

const (
	OutcomeIdle        Outcome = "idle"
	OutcomeDropped     Outcome = "dropped"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeRequeued    Outcome = "requeued"
	OutcomeDispatched  Outcome = "dispatched"
)

type DispatcherConfig struct {
	PollInterval time.Duration
	Backoff      time.Duration
	Timeout      time.Duration
	// MaxAttempts bounds failed sends per payment; zero retries forever.
	MaxAttempts int
	DeadLetter  bool
}

type Dispatcher struct {
	q      queue.PaymentQueueInterface
	pm     ProcessorManagerInterface
	ledger accounting.Ledger
	cfg    DispatcherConfig
	log    *slog.Logger
	now    func() time.Time
}

func NewDispatcher(
	q queue.PaymentQueueInterface,
	pm ProcessorManagerInterface,
	ledger accounting.Ledger,
	cfg DispatcherConfig,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		q:      q,
		pm:     pm,
		ledger: ledger,
		cfg:    cfg,
		log:    log.With("component", "dispatcher"),
		now:    time.Now,
	}
}

// ProcessOne pops at most one payment and routes it. The returned error is
// informational; every failure has already been turned into an outcome.
func (d *Dispatcher) ProcessOne(ctx context.Context) (Outcome, error) {
	payment, err := d.q.Dequeue(ctx)
	if err != nil {
		var serErr *internalErrors.SerializationError
		switch {
		case errors.Is(err, internalErrors.ErrNoPaymentsInQueue):
			return OutcomeIdle, nil
		case errors.As(err, &serErr):
			d.log.Error("dropping malformed payment", "payload", string(serErr.Payload), "error", err)
			d.deadLetter(ctx, serErr.Payload, err.Error())
			return OutcomeDropped, err
		default:
			// store unreachable: nothing to do this cycle
			d.log.Warn("failed to pop payment", "error", err)
			return OutcomeIdle, err
		}
	}

	name, processor, err := d.pm.Select(ctx)
	if err != nil {
		if qErr := d.requeue(ctx, payment); qErr != nil {
			return OutcomeUnavailable, qErr
		}
		return OutcomeUnavailable, err
	}

	payment.Stamp(d.now())

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	_, err = processor.SendPayment(sendCtx, *payment)
	cancel()

	if err == nil {
		d.pm.Report(ctx, name, true)

		signal := entities.Dispatch{
			Processor:     name,
			CorrelationId: payment.CorrelationId,
			Amount:        payment.Amount,
			RequestedAt:   payment.RequestedAt,
		}
		if lErr := d.ledger.Record(ctx, signal); lErr != nil {
			// delivered already; requeueing would pay twice
			d.log.Error("failed to record dispatch", "processor", name, "correlationId", payment.CorrelationId, "error", lErr)
		}
		return OutcomeDispatched, nil
	}

	d.log.Warn("payment dispatch failed", "processor", name, "correlationId", payment.CorrelationId, "error", err)
	d.pm.Report(ctx, name, false)

	if d.cfg.MaxAttempts > 0 {
		payment.RetryCount++
		if payment.RetryCount >= d.cfg.MaxAttempts {
			exhausted := fmt.Errorf("%w: %s after %d attempts", internalErrors.ErrPaymentExhausted, payment.CorrelationId, payment.RetryCount)
			d.log.Error("dropping payment", "correlationId", payment.CorrelationId, "error", exhausted)
			if raw, encErr := dtos.EncodePayment(payment); encErr == nil {
				d.deadLetter(ctx, raw, exhausted.Error())
			}
			return OutcomeDropped, exhausted
		}
	}

	if qErr := d.requeue(ctx, payment); qErr != nil {
		return OutcomeRequeued, qErr
	}

	return OutcomeRequeued, err
}

// requeue puts a popped payment back. If that fails the payment exists only
// in this log line, so the line carries everything needed to replay it.
func (d *Dispatcher) requeue(ctx context.Context, payment *dtos.Payment) error {
	err := d.q.Requeue(ctx, payment)
	if err == nil {
		return nil
	}

	raw, encErr := dtos.EncodePayment(payment)
	if encErr != nil {
		raw = []byte(fmt.Sprintf("%+v", *payment))
	}
	d.log.Error("failed to requeue payment, payment lost",
		"correlationId", payment.CorrelationId,
		"payload", string(raw),
		"error", err,
	)
	return err
}

func (d *Dispatcher) deadLetter(ctx context.Context, raw []byte, reason string) {
	if !d.cfg.DeadLetter {
		return
	}
	if err := d.q.DeadLetter(ctx, raw, reason); err != nil {
		d.log.Error("failed to dead-letter payment", "error", err)
	}
}

// Run drains the queue until ctx is cancelled, one payment per cycle.
func (d *Dispatcher) Run(ctx context.Context, workerID int) {
	log := d.log.With("workerID", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Info("dispatch worker stopping")
			return
		default:
		}

		outcome, err := d.ProcessOne(context.WithoutCancel(ctx))
		if err != nil &&
			!errors.Is(err, internalErrors.ErrNoPaymentProcessorAvailable) &&
			!errors.Is(err, context.DeadlineExceeded) {
			log.Debug("dispatch cycle", "outcome", outcome, "error", err)
		}

		wait := d.cfg.PollInterval
		if outcome == OutcomeUnavailable {
			wait = d.cfg.Backoff
		}

		select {
		case <-ctx.Done():
			log.Info("dispatch worker stopping")
			return
		case <-time.After(wait):
		}
	}
}

// Start runs n workers and blocks until all of them have returned.
func (d *Dispatcher) Start(ctx context.Context, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.Run(ctx, workerID)
		}(i)
	}
	wg.Wait()
}
