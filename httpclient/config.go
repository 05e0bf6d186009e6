package httpclient

import (
	"time"

	"github.com/georgeglarson/venice-go/logger"
	"github.com/georgeglarson/venice-go/observability"
	"github.com/georgeglarson/venice-go/ratelimit"
	"github.com/georgeglarson/venice-go/resilience"
)

const (
	defaultTimeout = 30 * time.Second
)

// Config configures the request pipeline.
type Config struct {
	// BaseURL is the base URL prepended to all request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the per-attempt timeout for non-streaming requests.
	// Defaults to 30s. Streaming requests rely on context cancellation only.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// Auth configures default authentication applied to all requests.
	// Individual requests can override this.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`

	// Retry configures retry behavior. Nil uses DefaultRetryConfig with the
	// pipeline's retry eligibility and reset-hint rules.
	Retry *resilience.RetryConfig `yaml:"-" mapstructure:"-"`

	// RateLimitHeaders names the rate-limit headers the tracker reads.
	// Nil uses ratelimit.DefaultHeaderNames.
	RateLimitHeaders *ratelimit.HeaderNames `yaml:"rate_limit_headers" mapstructure:"rate_limit_headers"`

	// ThrottleMaxWait enables pre-emptive throttling: when the latest
	// snapshot shows zero remaining capacity, Do sleeps until the reported
	// reset, bounded by this value, before sending. Zero disables throttling
	// and lets the server's 429 drive the retry path.
	ThrottleMaxWait time.Duration `yaml:"throttle_max_wait" mapstructure:"throttle_max_wait"`

	// Logger enables structured pipeline logging. Nil is silent.
	Logger *logger.Logger `yaml:"-" mapstructure:"-"`

	// Metrics enables pipeline metrics. Nil records nothing.
	Metrics *observability.RequestMetrics `yaml:"-" mapstructure:"-"`

	// Tracing enables an OpenTelemetry client span per logical call.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return NewValidationError("timeout must be positive")
	}
	return nil
}

// DefaultRetryConfig returns the retry policy the pipeline uses when none is
// configured: transient transport failures, 5xx, and 429 are retryable; a
// server reset hint takes precedence over computed backoff.
func DefaultRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	cfg.DelayHint = RetryAfterOf
	return cfg
}
