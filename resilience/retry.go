package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrRetriesExhausted wraps the last attempt's error when a retryable error
// outlives the retry budget. Test for it with errors.Is.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// JitterMode selects how randomness is applied to computed backoff delays.
type JitterMode int

const (
	// JitterNone disables jitter; delays follow the exponential curve exactly.
	JitterNone JitterMode = iota
	// JitterFull scales each delay by a random factor in [0.5, 1.5).
	JitterFull
	// JitterDecorrelated picks a random delay between the initial backoff and
	// three times the exponential delay, desynchronizing concurrent callers.
	JitterDecorrelated
)

// RetryConfig configures retry behavior for one pipeline instance.
// The zero value is usable; Decide applies defaults for unset fields.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// The total attempt count is therefore MaxRetries+1.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the computed delay.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff factor.
	Multiplier float64
	// Jitter selects the jitter mode applied to computed delays.
	Jitter JitterMode
	// RetryIf decides whether an error is retryable.
	RetryIf func(error) bool
	// DelayHint extracts a server-supplied minimum delay from an error
	// (e.g. a 429 reset hint). When the hint exceeds the computed backoff,
	// the hint wins.
	DelayHint func(error) time.Duration
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         JitterFull,
		RetryIf:        DefaultRetryIf,
	}
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Decision is the outcome of a retry policy evaluation.
type Decision struct {
	// Retry reports whether another attempt should be made.
	Retry bool
	// Delay is how long to wait before the next attempt. Zero when Retry is false.
	Delay time.Duration
}

// Decide maps (attempt number, error) to a retry decision. attempt is the
// number of attempts already made, starting at 1. Decide has no side effects
// and may be called concurrently.
func (c RetryConfig) Decide(attempt int, err error) Decision {
	c.applyDefaults()

	if err == nil || attempt > c.MaxRetries || !c.RetryIf(err) {
		return Decision{}
	}

	delay := c.backoff(attempt)
	if c.DelayHint != nil {
		if hint := c.DelayHint(err); hint > delay {
			delay = hint
		}
	}
	return Decision{Retry: true, Delay: delay}
}

// backoff computes the jittered exponential delay for the given attempt.
func (c RetryConfig) backoff(attempt int) time.Duration {
	exp := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt-1))
	if exp > float64(c.MaxBackoff) {
		exp = float64(c.MaxBackoff)
	}

	var d float64
	switch c.Jitter {
	case JitterFull:
		d = exp * (0.5 + rand.Float64())
	case JitterDecorrelated:
		lo := float64(c.InitialBackoff)
		hi := exp * 3
		if hi <= lo {
			hi = lo + 1
		}
		d = lo + rand.Float64()*(hi-lo)
	default:
		d = exp
	}

	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if d < 0 {
		d = float64(c.InitialBackoff)
	}
	return time.Duration(d)
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
}

// Retry executes fn until it succeeds, the policy stops retrying, or ctx is
// done. It returns the result of the last attempt; when a retryable error
// exhausts the budget, the returned error also matches ErrRetriesExhausted.
// The sleep between attempts is interrupted promptly by ctx cancellation,
// which is returned as ctx.Err().
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	cfg.applyDefaults()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		d := cfg.Decide(attempt, err)
		if !d.Retry {
			if attempt > cfg.MaxRetries && cfg.RetryIf(err) {
				return zero, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
			}
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, d.Delay)
		}

		timer := time.NewTimer(d.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
