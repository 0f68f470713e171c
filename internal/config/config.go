package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string

	SearchAPIURL  string
	PaymentAPIURL string
	PaymentAPIKey string
	MailAPIURL    string
	EmailSender   string

	AdminURL    string
	DeeplinkURL string

	JWTSecret string

	// DispatchSchedule and SweepSchedule are cron specs for the due-order
	// dispatch and the timed-out order sweep.
	DispatchSchedule string
	SweepSchedule    string
	OrderTimeoutDays int

	WorkerPoolSize  int
	RunActionWait   time.Duration
	ShutdownTimeout time.Duration
	SkipPayment     bool
}

const (
	defaultRunAddress       = ":8080"
	defaultJWTSecret        = "change-me-in-production"
	defaultDispatchSchedule = "@every 5m"
	defaultSweepSchedule    = "@every 1h"
	defaultOrderTimeoutDays = 3
	defaultWorkerPoolSize   = 4
	defaultRunActionWait    = 10 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultEmailSender      = "orders@vinocellar.example"
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:       getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:      getString(lookup, "DATABASE_URI", ""),
		SearchAPIURL:     getString(lookup, "SEARCH_API_URL", ""),
		PaymentAPIURL:    getString(lookup, "PAYMENT_API_URL", ""),
		PaymentAPIKey:    getString(lookup, "PAYMENT_API_KEY", ""),
		MailAPIURL:       getString(lookup, "MAIL_API_URL", ""),
		EmailSender:      getString(lookup, "EMAIL_SENDER", defaultEmailSender),
		AdminURL:         getString(lookup, "ADMIN_URL", ""),
		DeeplinkURL:      getString(lookup, "SHIPMENTS_DEEPLINK_URL", ""),
		JWTSecret:        getString(lookup, "JWT_SECRET", defaultJWTSecret),
		DispatchSchedule: getString(lookup, "DISPATCH_SCHEDULE", defaultDispatchSchedule),
		SweepSchedule:    getString(lookup, "SWEEP_SCHEDULE", defaultSweepSchedule),
		OrderTimeoutDays: getInt(lookup, "ORDER_TIMEOUT_DAYS", defaultOrderTimeoutDays),
		WorkerPoolSize:   getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		RunActionWait:    getDuration(lookup, "RUN_ACTION_WAIT", defaultRunActionWait),
		ShutdownTimeout:  getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		SkipPayment:      getBool(lookup, "SKIP_PAYMENT", false),
	}

	fs := flag.NewFlagSet("vinocellar", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		runActionWaitStr   = cfg.RunActionWait.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.SearchAPIURL, "search-url", cfg.SearchAPIURL, "Catalog search API base URL")
	fs.StringVar(&cfg.PaymentAPIURL, "payment-url", cfg.PaymentAPIURL, "Payment gateway base URL")
	fs.StringVar(&cfg.MailAPIURL, "mail-url", cfg.MailAPIURL, "Mail API base URL")
	fs.StringVar(&cfg.AdminURL, "admin-url", cfg.AdminURL, "Admin console base URL used in notifications")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Secret for signing auth tokens")
	fs.StringVar(&cfg.DispatchSchedule, "dispatch-schedule", cfg.DispatchSchedule, "Cron spec for due-order dispatch")
	fs.StringVar(&cfg.SweepSchedule, "sweep-schedule", cfg.SweepSchedule, "Cron spec for timed-out order sweep")
	fs.IntVar(&cfg.OrderTimeoutDays, "order-timeout-days", cfg.OrderTimeoutDays, "Days in one state before an order counts as timed out")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent order workers")
	fs.StringVar(&runActionWaitStr, "run-action-wait", runActionWaitStr, "How long a synchronous action call waits before detaching")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.BoolVar(&cfg.SkipPayment, "skip-payment", cfg.SkipPayment, "Skip payment authorization and capture")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.RunActionWait, err = time.ParseDuration(runActionWaitStr); err != nil {
		return nil, fmt.Errorf("invalid run action wait: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if secretFile, ok := lookup("JWT_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt secret file: %w", err)
		}
		cfg.JWTSecret = string(content)
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.OrderTimeoutDays <= 0 {
		cfg.OrderTimeoutDays = defaultOrderTimeoutDays
	}

	if cfg.RunActionWait <= 0 {
		cfg.RunActionWait = defaultRunActionWait
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.SearchAPIURL == "" {
		return nil, fmt.Errorf("search API URL must be provided")
	}

	if cfg.PaymentAPIURL == "" {
		return nil, fmt.Errorf("payment API URL must be provided")
	}

	if cfg.MailAPIURL == "" {
		return nil, fmt.Errorf("mail API URL must be provided")
	}

	return cfg, nil
}

// OrderTimeout converts the configured day threshold to a duration.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutDays) * 24 * time.Hour
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
