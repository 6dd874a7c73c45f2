package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"payment-gateway/internal/breaker"
	"payment-gateway/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("server_id", cfg.ServerID)
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		MinIdleConns: 20,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		IdleTimeout:  2 * time.Minute,
	})

	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, err
	}
	return rc, nil
}

// env bundles what every subcommand needs before it can do anything useful.
type env struct {
	cfg *config.Config
	log *slog.Logger
	rc  *redis.Client
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	rc, err := newRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		return nil, err
	}

	return &env{cfg: cfg, log: log, rc: rc}, nil
}

func (e *env) breakers() *breaker.Store {
	return breaker.NewStore(breaker.NewRedisStateStore(e.rc), e.log)
}

func (e *env) close() {
	if err := e.rc.Close(); err != nil {
		e.log.Error("failed to close redis client", "error", err)
	}
}

func main() {
	root := &cobra.Command{
		Use:           "payment-gateway",
		Short:         "Queue-backed payment gateway with per-processor circuit breakers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newBreakersCmd(), newQueueCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
