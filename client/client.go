package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/georgeglarson/venice-go/config"
	"github.com/georgeglarson/venice-go/httpclient"
	"github.com/georgeglarson/venice-go/logger"
	"github.com/georgeglarson/venice-go/observability"
	"github.com/georgeglarson/venice-go/ratelimit"
	"github.com/georgeglarson/venice-go/stream"
	"github.com/georgeglarson/venice-go/validation"
	"github.com/georgeglarson/venice-go/webhook"
)

// Client is the SDK facade. It is safe for concurrent use.
type Client struct {
	http *httpclient.Client
	cfg  config.Config
}

// Option configures a Client.
type Option func(*options)

type options struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *observability.RequestMetrics
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.cfg.BaseURL = url }
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.Timeout = d }
}

// WithRetry overrides the retry policy settings.
func WithRetry(rc config.RetryConfig) Option {
	return func(o *options) { o.cfg.Retry = rc }
}

// WithRateLimitHeaders overrides the rate-limit header names.
func WithRateLimitHeaders(names ratelimit.HeaderNames) Option {
	return func(o *options) { o.cfg.RateLimit.Headers = names }
}

// WithThrottle enables pre-emptive throttling when the tracked rate limit
// is exhausted, waiting at most maxWait for the reset.
func WithThrottle(maxWait time.Duration) Option {
	return func(o *options) { o.cfg.RateLimit.ThrottleMaxWait = maxWait }
}

// WithWebhookSecret sets the webhook signing secret for WebhookVerifier.
func WithWebhookSecret(secret string) Option {
	return func(o *options) { o.cfg.Webhook.Secret = secret }
}

// WithLogger enables structured logging for the pipeline.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics enables request metrics recording.
func WithMetrics(m *observability.RequestMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracing enables an OpenTelemetry client span per logical call.
func WithTracing() Option {
	return func(o *options) { o.cfg.Tracing = true }
}

// New creates a Client authenticating with the given API key.
//
// Retries are opt-in: without WithRetry (or a loaded retry configuration)
// the client makes a single attempt per request. This differs from the
// lower-level httpclient.New, which falls back to its own retry defaults
// when no policy is given.
func New(apiKey string, opts ...Option) (*Client, error) {
	o := options{cfg: config.Config{APIKey: apiKey}}
	for _, opt := range opts {
		opt(&o)
	}
	return build(o)
}

// NewFromConfig creates a Client from a loaded configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{cfg: *cfg}
	for _, opt := range opts {
		opt(&o)
	}
	return build(o)
}

// NewFromEnv loads configuration from VENICE_* environment variables and
// optional venice.yml / .env files, then creates a Client. The logger is
// built from the loaded logging settings.
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	o := options{cfg: *cfg, log: logger.New(cfg.Logging)}
	for _, opt := range opts {
		opt(&o)
	}
	return build(o)
}

func build(o options) (*Client, error) {
	o.cfg.ApplyDefaults()
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	retry := o.cfg.Retry.Build()
	headers := o.cfg.RateLimit.Headers
	hc, err := httpclient.New(httpclient.Config{
		BaseURL:          o.cfg.BaseURL,
		Timeout:          o.cfg.Timeout,
		Auth:             httpclient.BearerAuth(o.cfg.APIKey),
		Retry:            &retry,
		RateLimitHeaders: &headers,
		ThrottleMaxWait:  o.cfg.RateLimit.ThrottleMaxWait,
		Logger:           o.log,
		Metrics:          o.metrics,
		Tracing:          o.cfg.Tracing,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, cfg: o.cfg}, nil
}

// Do executes a raw pipeline request.
func (c *Client) Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	return c.http.Do(ctx, req)
}

// HTTP returns the underlying pipeline client.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// RateLimit returns the most recent rate-limit snapshot, or nil before any
// response has been observed.
func (c *Client) RateLimit() *ratelimit.Snapshot {
	return c.http.RateLimit()
}

// WebhookVerifier builds a verifier from the configured webhook settings.
func (c *Client) WebhookVerifier() (*webhook.Verifier, error) {
	if c.cfg.Webhook.Secret == "" {
		return nil, errors.New("webhook secret not configured")
	}
	var opts []webhook.VerifierOption
	if c.cfg.Webhook.Tolerance > 0 {
		opts = append(opts, webhook.WithTolerance(c.cfg.Webhook.Tolerance))
	}
	return webhook.NewVerifier(c.cfg.Webhook.Secret, opts...), nil
}

// Get performs a GET request and decodes the JSON response into T.
func Get[T any](c *Client, ctx context.Context, path string, opts ...httpclient.RequestOption) (*httpclient.TypedResponse[T], error) {
	return httpclient.Get[T](c.http, ctx, path, opts...)
}

// Post performs a POST request with a JSON body and decodes the response
// into T. The body is validated via its struct tags first.
func Post[T any](c *Client, ctx context.Context, path string, body any, opts ...httpclient.RequestOption) (*httpclient.TypedResponse[T], error) {
	if body != nil {
		if err := validation.Validate(body); err != nil {
			return nil, httpclient.NewValidationError(err.Error())
		}
	}
	return httpclient.Post[T](c.http, ctx, path, body, opts...)
}

// Delete performs a DELETE request and decodes the JSON response into T.
func Delete[T any](c *Client, ctx context.Context, path string, opts ...httpclient.RequestOption) (*httpclient.TypedResponse[T], error) {
	return httpclient.Delete[T](c.http, ctx, path, opts...)
}

// Stream issues a POST and decodes the SSE response into typed chunks.
// The caller owns the returned decoder and must Close it.
func Stream[T any](c *Client, ctx context.Context, path string, body any, opts ...httpclient.RequestOption) (*stream.Decoder[T], error) {
	if body != nil {
		if err := validation.Validate(body); err != nil {
			return nil, httpclient.NewValidationError(err.Error())
		}
	}

	req := httpclient.Request{
		Method:  http.MethodPost,
		Path:    path,
		Body:    body,
		Headers: map[string]string{"Accept": "text/event-stream"},
	}
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.http.DoStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream.NewDecoder[T](ctx, resp)
}
