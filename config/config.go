package config

import (
	"time"

	"github.com/georgeglarson/venice-go/logger"
	"github.com/georgeglarson/venice-go/ratelimit"
	"github.com/georgeglarson/venice-go/resilience"
	"github.com/georgeglarson/venice-go/validation"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.venice.ai/api/v1"

// Config is the full SDK configuration.
type Config struct {
	// APIKey authenticates all requests.
	APIKey string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	// BaseURL overrides the API endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	// Timeout is the per-attempt request timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Logging   logger.Config   `yaml:"logging" mapstructure:"logging"`
	Tracing   bool            `yaml:"tracing" mapstructure:"tracing"`
}

// RetryConfig configures the retry policy. The zero value disables retries;
// MaxRetries stays at the configured count so an explicit 0 means exactly one
// attempt.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	// Jitter is one of "none", "full", or "decorrelated".
	Jitter string `yaml:"jitter" mapstructure:"jitter" validate:"omitempty,oneof=none full decorrelated"`
}

// Build converts the declarative retry settings into a policy. Retry
// eligibility and reset hints are wired by the client.
func (c RetryConfig) Build() resilience.RetryConfig {
	out := resilience.DefaultRetryConfig()
	out.MaxRetries = c.MaxRetries
	if c.InitialBackoff > 0 {
		out.InitialBackoff = c.InitialBackoff
	}
	if c.MaxBackoff > 0 {
		out.MaxBackoff = c.MaxBackoff
	}
	if c.Multiplier > 0 {
		out.Multiplier = c.Multiplier
	}
	switch c.Jitter {
	case "none":
		out.Jitter = resilience.JitterNone
	case "decorrelated":
		out.Jitter = resilience.JitterDecorrelated
	case "full", "":
		out.Jitter = resilience.JitterFull
	}
	return out
}

// RateLimitConfig configures rate-limit tracking and throttling.
type RateLimitConfig struct {
	// Headers overrides the rate-limit header names.
	Headers ratelimit.HeaderNames `yaml:"headers" mapstructure:"headers"`
	// ThrottleMaxWait bounds pre-emptive throttling. Zero disables it.
	ThrottleMaxWait time.Duration `yaml:"throttle_max_wait" mapstructure:"throttle_max_wait"`
}

// WebhookConfig configures webhook signature verification.
type WebhookConfig struct {
	// Secret is the shared signing secret.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Tolerance bounds the timestamp age. Zero uses the package default.
	Tolerance time.Duration `yaml:"tolerance" mapstructure:"tolerance"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retry.Jitter == "" {
		c.Retry.Jitter = "full"
	}
	if c.RateLimit.Headers == (ratelimit.HeaderNames{}) {
		c.RateLimit.Headers = ratelimit.DefaultHeaderNames()
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the configuration via struct tags.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return c.Logging.Validate()
}
