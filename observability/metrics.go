package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics holds the pipeline's instruments. All methods are safe on a
// nil receiver, so the pipeline records unconditionally.
type RequestMetrics struct {
	attempts    metric.Int64Counter
	retries     metric.Int64Counter
	rateLimited metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewRequestMetrics creates the pipeline instruments on the given meter.
// A nil meter uses the global provider.
func NewRequestMetrics(m metric.Meter) (*RequestMetrics, error) {
	if m == nil {
		m = Meter()
	}

	attempts, err := m.Int64Counter("venice.client.attempts",
		metric.WithDescription("HTTP attempts sent, including retries"))
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}
	retries, err := m.Int64Counter("venice.client.retries",
		metric.WithDescription("Retries scheduled by the pipeline"))
	if err != nil {
		return nil, fmt.Errorf("creating retries counter: %w", err)
	}
	rateLimited, err := m.Int64Counter("venice.client.rate_limited",
		metric.WithDescription("Responses with HTTP 429"))
	if err != nil {
		return nil, fmt.Errorf("creating rate_limited counter: %w", err)
	}
	duration, err := m.Float64Histogram("venice.client.request.duration",
		metric.WithDescription("Logical call duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &RequestMetrics{
		attempts:    attempts,
		retries:     retries,
		rateLimited: rateLimited,
		duration:    duration,
	}, nil
}

// RecordAttempt counts one HTTP attempt with its outcome status.
func (r *RequestMetrics) RecordAttempt(ctx context.Context, method, path string, status int) {
	if r == nil {
		return
	}
	r.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.Int("http.response.status_code", status),
	))
	if status == 429 {
		r.rateLimited.Add(ctx, 1)
	}
}

// RecordRetry counts one scheduled retry.
func (r *RequestMetrics) RecordRetry(ctx context.Context) {
	if r == nil {
		return
	}
	r.retries.Add(ctx, 1)
}

// RecordDuration records the duration of one logical call.
func (r *RequestMetrics) RecordDuration(ctx context.Context, d time.Duration, success bool) {
	if r == nil {
		return
	}
	r.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}
