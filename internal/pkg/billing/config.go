package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

const (
	defaultWebhookTolerance = 5 * time.Minute
	defaultMaxAttempts      = 8
	defaultBackoffBase      = 30 * time.Second
	defaultBackoffMax       = time.Hour
	defaultHandlerTimeout   = 30 * time.Second
	defaultProcessingLease  = 5 * time.Minute
)

// Config holds the tunables of intake and dispatch.
type Config struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
	MaxAttempts      int
	Backoff          Backoff
	HandlerTimeout   time.Duration
	ProcessingLease  time.Duration
}

// DefaultConfig returns the built-in defaults without a webhook secret.
func DefaultConfig() Config {
	return Config{
		WebhookTolerance: defaultWebhookTolerance,
		MaxAttempts:      defaultMaxAttempts,
		Backoff:          Backoff{Base: defaultBackoffBase, Max: defaultBackoffMax},
		HandlerTimeout:   defaultHandlerTimeout,
		ProcessingLease:  defaultProcessingLease,
	}
}

// ConfigFromEnv reads the billing configuration from the environment.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.WebhookSecret = strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	cfg.WebhookTolerance = env.GetEnvDuration("STRIPE_WEBHOOK_TOLERANCE", cfg.WebhookTolerance)
	cfg.MaxAttempts = env.GetEnvInt("BILLING_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.Backoff.Base = env.GetEnvDuration("BILLING_BACKOFF_BASE", cfg.Backoff.Base)
	cfg.Backoff.Max = env.GetEnvDuration("BILLING_BACKOFF_MAX", cfg.Backoff.Max)
	cfg.HandlerTimeout = env.GetEnvDuration("BILLING_HANDLER_TIMEOUT", cfg.HandlerTimeout)
	cfg.ProcessingLease = env.GetEnvDuration("BILLING_PROCESSING_LEASE", cfg.ProcessingLease)
	return cfg.normalized()
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.WebhookTolerance < 0 {
		c.WebhookTolerance = d.WebhookTolerance
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Backoff.Base <= 0 {
		c.Backoff.Base = d.Backoff.Base
	}
	if c.Backoff.Max < c.Backoff.Base {
		c.Backoff.Max = c.Backoff.Base
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = d.HandlerTimeout
	}
	if c.ProcessingLease <= 0 {
		c.ProcessingLease = d.ProcessingLease
	}
	return c
}
