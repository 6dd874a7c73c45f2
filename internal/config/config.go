package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// How long a tripped breaker stays Open before the prober may promote it to HalfOpen
	HalfOpenCooldown = 5 * time.Second

	// How often each prober calls its processor's health endpoint
	ProbeInterval = 5 * time.Second

	DispatchPollInterval = 10 * time.Millisecond

	// Standardized date format for consistency across all components
	DateTimeFormat = "2006-01-02T15:04:05.000Z"

	ProcessorDefault  = "default"
	ProcessorFallback = "fallback"

	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
)

type Config struct {
	Port     string
	ServerID string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DefaultProcessorURL  string
	FallbackProcessorURL string
	PurgeToken           string

	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	HalfOpenCooldown time.Duration

	DispatchPollInterval time.Duration
	DispatchBackoff      time.Duration
	DispatchTimeout      time.Duration
	DispatchWorkers      int
	DispatchMaxAttempts  int
	DeadLetterEnabled    bool

	LedgerDriver string
	PostgresDSN  string

	LogLevel  string
	LogFormat string
}

// ConfigurationError is fatal: it is only returned before any loop has started.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "9999")
	v.SetDefault("server_id", "default_server")
	v.SetDefault("redis_addr", "redis:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("payment_processor_url_default", "http://payment-processor-default:8080")
	v.SetDefault("payment_processor_url_fallback", "http://payment-processor-fallback:8080")
	v.SetDefault("purge_token", "123")
	v.SetDefault("probe_interval", ProbeInterval)
	v.SetDefault("probe_timeout", 2*time.Second)
	v.SetDefault("half_open_cooldown", HalfOpenCooldown)
	v.SetDefault("dispatch_poll_interval", DispatchPollInterval)
	v.SetDefault("dispatch_backoff", 250*time.Millisecond)
	v.SetDefault("dispatch_timeout", 2*time.Second)
	v.SetDefault("dispatch_workers", 1)
	v.SetDefault("dispatch_max_attempts", 0)
	v.SetDefault("dead_letter_enabled", false)
	v.SetDefault("ledger_driver", LedgerRedis)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:                 v.GetString("app_port"),
		ServerID:             v.GetString("server_id"),
		RedisAddr:            v.GetString("redis_addr"),
		RedisPassword:        v.GetString("redis_password"),
		RedisDB:              v.GetInt("redis_db"),
		DefaultProcessorURL:  strings.TrimRight(v.GetString("payment_processor_url_default"), "/"),
		FallbackProcessorURL: strings.TrimRight(v.GetString("payment_processor_url_fallback"), "/"),
		PurgeToken:           v.GetString("purge_token"),
		ProbeInterval:        v.GetDuration("probe_interval"),
		ProbeTimeout:         v.GetDuration("probe_timeout"),
		HalfOpenCooldown:     v.GetDuration("half_open_cooldown"),
		DispatchPollInterval: v.GetDuration("dispatch_poll_interval"),
		DispatchBackoff:      v.GetDuration("dispatch_backoff"),
		DispatchTimeout:      v.GetDuration("dispatch_timeout"),
		DispatchWorkers:      v.GetInt("dispatch_workers"),
		DispatchMaxAttempts:  v.GetInt("dispatch_max_attempts"),
		DeadLetterEnabled:    v.GetBool("dead_letter_enabled"),
		LedgerDriver:         strings.ToLower(v.GetString("ledger_driver")),
		PostgresDSN:          v.GetString("postgres_dsn"),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return &ConfigurationError{Field: "REDIS_ADDR", Reason: "must not be empty"}
	}

	if err := validateURL("PAYMENT_PROCESSOR_URL_DEFAULT", c.DefaultProcessorURL); err != nil {
		return err
	}
	if err := validateURL("PAYMENT_PROCESSOR_URL_FALLBACK", c.FallbackProcessorURL); err != nil {
		return err
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"PROBE_INTERVAL", c.ProbeInterval},
		{"PROBE_TIMEOUT", c.ProbeTimeout},
		{"HALF_OPEN_COOLDOWN", c.HalfOpenCooldown},
		{"DISPATCH_POLL_INTERVAL", c.DispatchPollInterval},
		{"DISPATCH_BACKOFF", c.DispatchBackoff},
		{"DISPATCH_TIMEOUT", c.DispatchTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return &ConfigurationError{Field: d.field, Reason: "must be a positive duration"}
		}
	}

	if c.DispatchWorkers < 1 {
		return &ConfigurationError{Field: "DISPATCH_WORKERS", Reason: "must be at least 1"}
	}
	if c.DispatchMaxAttempts < 0 {
		return &ConfigurationError{Field: "DISPATCH_MAX_ATTEMPTS", Reason: "must not be negative"}
	}

	switch c.LedgerDriver {
	case LedgerRedis:
	case LedgerPostgres:
		if c.PostgresDSN == "" {
			return &ConfigurationError{Field: "POSTGRES_DSN", Reason: "required when LEDGER_DRIVER=postgres"}
		}
	default:
		return &ConfigurationError{Field: "LEDGER_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.LedgerDriver)}
	}

	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return &ConfigurationError{Field: field, Reason: "must not be empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Field: field, Reason: err.Error()}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Field: field, Reason: "must be an absolute http(s) url"}
	}

	return nil
}
