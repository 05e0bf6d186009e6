package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/georgeglarson/venice-go/httpclient/sse"
	"github.com/georgeglarson/venice-go/logger"
	"github.com/georgeglarson/venice-go/ratelimit"
	"github.com/georgeglarson/venice-go/resilience"
	"github.com/georgeglarson/venice-go/version"
)

// requestIDHeader carries the client-generated correlation ID.
const requestIDHeader = "X-Request-Id"

// Client executes API requests with retry, rate-limit tracking, and
// streaming support. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	config     Config
	retry      resilience.RetryConfig
	tracker    *ratelimit.Tracker
	log        *logger.Logger
}

// New creates a client from the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
		if retry.RetryIf == nil {
			retry.RetryIf = IsRetryable
		}
		if retry.DelayHint == nil {
			retry.DelayHint = RetryAfterOf
		}
	}

	names := ratelimit.DefaultHeaderNames()
	if cfg.RateLimitHeaders != nil {
		names = *cfg.RateLimitHeaders
	}

	var trackerOpts []ratelimit.TrackerOption
	if cfg.Logger != nil {
		trackerOpts = append(trackerOpts, ratelimit.WithLogger(cfg.Logger))
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		retry:      retry,
		tracker:    ratelimit.NewTracker(names, trackerOpts...),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.WithComponent("httpclient")
	}
	return c, nil
}

// RateLimit returns the most recent rate-limit snapshot, or nil before the
// first response has been observed.
func (c *Client) RateLimit() *ratelimit.Snapshot {
	return c.tracker.Snapshot()
}

// Unwrap returns the underlying *http.Client.
func (c *Client) Unwrap() *http.Client {
	return c.httpClient
}

// Do executes a request through the full pipeline: optional throttling,
// the configured retry policy, and rate-limit tracking from every response.
// The returned error is always a *Error on failure, with Attempts set.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	log := c.requestLogger(requestID)

	start := time.Now()
	ctx, span := c.startSpan(ctx, req, requestID)

	resp, err := c.doRetry(ctx, req, requestID, log)

	if c.config.Metrics != nil {
		c.config.Metrics.RecordDuration(ctx, time.Since(start), err == nil)
	}
	c.endSpan(span, resp, err)

	if err != nil {
		if log != nil {
			log.Error("request failed", logger.Fields(logger.FieldError, err.Error()))
		}
		return nil, err
	}

	resp.RequestID = requestID
	if log != nil {
		log.Debug("request completed", logger.Fields(
			logger.FieldStatus, resp.StatusCode,
			logger.FieldAttempt, resp.Attempts,
			logger.FieldDuration, time.Since(start).Milliseconds(),
		))
	}
	return resp, nil
}

// doRetry runs the retry loop and maps terminal outcomes to their final
// error codes.
func (c *Client) doRetry(ctx context.Context, req Request, requestID string, log *logger.Logger) (*Response, *Error) {
	if c.config.ThrottleMaxWait > 0 {
		if err := c.tracker.Throttle(ctx, c.config.ThrottleMaxWait); err != nil {
			return nil, NewCancelledError(err)
		}
	}

	cfg := c.retry
	attempts := 0
	userOnRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		if log != nil {
			log.Warn("retrying request", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldBackoff, backoff.Milliseconds(),
				logger.FieldError, err.Error(),
			))
		}
		if c.config.Metrics != nil {
			c.config.Metrics.RecordRetry(ctx)
		}
		if userOnRetry != nil {
			userOnRetry(attempt, err, backoff)
		}
	}

	payload, contentType, encErr := encodeBody(req.Body)
	if encErr != nil {
		return nil, NewValidationError(fmt.Sprintf("encode body: %v", encErr))
	}

	resp, err := resilience.Retry(ctx, cfg, func() (*Response, error) {
		attempts++
		return c.executeRequest(ctx, req, requestID, payload, contentType)
	})
	if err == nil {
		resp.Attempts = attempts
		return resp, nil
	}

	return nil, c.terminalError(err, attempts)
}

// terminalError attaches the attempt count and promotes an exhausted 429
// budget to its own error code.
func (c *Client) terminalError(err error, attempts int) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		e := NewCancelledError(err)
		e.Attempts = attempts
		return e
	}

	var e *Error
	if !errors.As(err, &e) {
		e = NewTransportError(err)
	}
	e.Attempts = attempts

	if e.Code == ErrCodeRateLimited && attempts > c.retry.MaxRetries {
		e.Code = ErrCodeRateLimitExceeded
		e.Retryable = false
	}
	return e
}

// executeRequest sends one HTTP attempt. Rate-limit state is captured from
// every response, success or failure, before status classification.
func (c *Client) executeRequest(ctx context.Context, req Request, requestID string, payload []byte, contentType string) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req, requestID, payload, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("read response body: %w", err))
	}

	headers := flattenHeaders(resp.Header)
	c.tracker.Update(headers)
	if c.config.Metrics != nil {
		c.config.Metrics.RecordAttempt(ctx, req.Method, req.Path, resp.StatusCode)
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}

	if classErr := ClassifyStatusCode(resp.StatusCode, body); classErr != nil {
		if classErr.Code == ErrCodeRateLimited {
			classErr.RetryAfter = c.resetHint(headers)
		}
		return result, classErr
	}
	return result, nil
}

// resetHint derives the 429 backoff hint: the explicit retry-after header
// when present, otherwise the nearest reset time from the snapshot.
func (c *Client) resetHint(headers map[string]string) time.Duration {
	now := time.Now()
	if hint := ratelimit.RetryAfterHint(headers, c.tracker.HeaderNames(), now); hint > 0 {
		return hint
	}
	if snap := c.tracker.Snapshot(); snap != nil {
		if reset, ok := snap.NextReset(now); ok && reset.After(now) {
			return reset.Sub(now)
		}
	}
	return 0
}

// transportError distinguishes caller aborts from attempt timeouts and
// connection failures.
func (c *Client) transportError(ctx context.Context, err error) *Error {
	if ctx.Err() != nil {
		return NewCancelledError(ctx.Err())
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(err)
	}
	return NewTransportError(err)
}

// DoStream executes a streaming request. Retry is not applied: once bytes
// have been delivered to the caller, a retry would replay them. The caller
// must Close the returned StreamResponse.
func (c *Client) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	requestID := uuid.NewString()
	log := c.requestLogger(requestID)

	payload, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("encode body: %v", err))
	}
	httpReq, err := c.buildRequest(ctx, req, requestID, payload, contentType)
	if err != nil {
		return nil, err
	}

	// A transport-only client: streams live past any per-attempt timeout
	// and are bounded by ctx alone.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	headers := flattenHeaders(resp.Header)
	c.tracker.Update(headers)

	// An error status arrives as a complete JSON body, not a stream.
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		classErr := ClassifyStatusCode(resp.StatusCode, body)
		classErr.Attempts = 1
		if classErr.Code == ErrCodeRateLimited {
			classErr.RetryAfter = c.resetHint(headers)
		}
		if log != nil {
			log.Error("stream request failed", logger.Fields(logger.FieldStatus, resp.StatusCode))
		}
		return nil, classErr
	}

	stream := &StreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		RequestID:  requestID,
		rawResp:    resp,
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		stream.SSE = sse.NewReader(resp.Body)
	} else {
		stream.Body = resp.Body
	}
	return stream, nil
}

// buildRequest constructs an *http.Request from the client config, the
// request, and a pre-encoded payload. The payload is encoded once per call so
// a retried attempt carries a fresh reader over the same bytes.
func (c *Client) buildRequest(ctx context.Context, req Request, requestID string, payload []byte, contentType string) (*http.Request, error) {
	url := req.Path
	if c.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		url = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("create request: %v", err))
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set(requestIDHeader, requestID)

	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	auth := c.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	auth.apply(httpReq)

	return httpReq, nil
}

func (c *Client) requestLogger(requestID string) *logger.Logger {
	if c.log == nil {
		return nil
	}
	return c.log.WithRequestID(requestID)
}

// encodeBody materializes a body value into bytes and a content type. Reader
// bodies are read fully here, once per call, so every retry attempt sends the
// same bytes.
func encodeBody(body any) ([]byte, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case *MultipartBody:
		return v.encode()
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", err
		}
		return data, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

// flattenHeaders converts multi-value headers to single-value.
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}
