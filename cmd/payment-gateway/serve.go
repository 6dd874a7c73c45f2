package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"payment-gateway/internal/accounting"
	"payment-gateway/internal/config"
	"payment-gateway/internal/gateway"
	"payment-gateway/internal/queue"
	"payment-gateway/internal/server"
	"payment-gateway/internal/services"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the health probers and the dispatch workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func openLedger(ctx context.Context, e *env) (accounting.Ledger, func(), error) {
	switch e.cfg.LedgerDriver {
	case config.LedgerPostgres:
		db, err := accounting.OpenPostgres(ctx, e.cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		ledger := accounting.NewPostgresLedger(db)
		if err := ledger.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate postgres ledger: %w", err)
		}
		return ledger, func() { db.Close() }, nil
	default:
		return accounting.NewRedisLedger(e.rc), func() {}, nil
	}
}

func serve(ctx context.Context) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.cfg

	ledger, closeLedger, err := openLedger(ctx, e)
	if err != nil {
		return err
	}
	defer closeLedger()

	breakers := e.breakers()
	for _, name := range []string{config.ProcessorDefault, config.ProcessorFallback} {
		if err := breakers.Init(ctx, name); err != nil {
			e.log.Warn("failed to seed circuit state", "processor", name, "error", err)
		}
	}

	defaultProcessor := gateway.NewPaymentProcessor(config.ProcessorDefault, cfg.DefaultProcessorURL)
	fallbackProcessor := gateway.NewPaymentProcessor(config.ProcessorFallback, cfg.FallbackProcessorURL)
	registry := gateway.NewRegistry(defaultProcessor, fallbackProcessor)
	processorManager := services.NewProcessorManager(breakers, registry, cfg.PurgeToken)

	q := queue.NewPaymentQueue(e.rc)
	paymentsService := services.NewPaymentService(processorManager, q, ledger)
	dispatcher := services.NewDispatcher(q, processorManager, ledger, services.DispatcherConfig{
		PollInterval: cfg.DispatchPollInterval,
		Backoff:      cfg.DispatchBackoff,
		Timeout:      cfg.DispatchTimeout,
		MaxAttempts:  cfg.DispatchMaxAttempts,
		DeadLetter:   cfg.DeadLetterEnabled,
	}, e.log)

	loops := []func(context.Context){
		func(ctx context.Context) { dispatcher.Start(ctx, cfg.DispatchWorkers) },
	}
	for _, p := range []gateway.PaymentProcessorInterface{defaultProcessor, fallbackProcessor} {
		prober := services.NewHealthProber(p, breakers, cfg.ProbeInterval, cfg.ProbeTimeout, cfg.HalfOpenCooldown, e.log)
		loops = append(loops, prober.Run)
	}

	srv := server.NewServer(cfg.Port, cfg.ServerID, paymentsService)
	e.log.Info("READY",
		"port", cfg.Port,
		"ledger", cfg.LedgerDriver,
		"workers", cfg.DispatchWorkers,
	)

	if err := run(ctx, srv, loops...); err != nil {
		e.log.Error("server failed", "error", err)
		return err
	}

	e.log.Info("stopped")
	return nil
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// run serves srv and the background loops until ctx is done or the server
// fails. Either way the loops are cancelled and waited for before it returns,
// so nothing still holds the shared clients when the caller closes them.
func run(ctx context.Context, srv httpServer, loops ...func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx)
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer stop()
	if sErr := srv.Shutdown(shutdownCtx); sErr != nil {
		slog.Error("failed to shut down http server", "error", sErr)
	}

	wg.Wait()
	return err
}
