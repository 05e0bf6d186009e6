package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/georgeglarson/venice-go/resilience"
)

func fastRetry(maxRetries int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		Jitter:         resilience.JitterNone,
		RetryIf:        IsRetryable,
		DelayHint:      RetryAfterOf,
	}
}

func newTestClient(t *testing.T, url string, retry *resilience.RetryConfig) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: url,
		Timeout: 5 * time.Second,
		Auth:    BearerAuth("test-key"),
		Retry:   retry,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Do_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing request ID header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(2))
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}
	if resp.RequestID == "" {
		t.Error("RequestID not set")
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
}

func TestClient_Do_ValidationErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_model","message":"unknown model"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(3))
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/chat/completions"})

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error type %T", err)
	}
	if e.Code != ErrCodeValidation {
		t.Errorf("Code = %v", e.Code)
	}
	if e.APICode != "invalid_model" || e.Message != "unknown model" {
		t.Errorf("APICode=%q Message=%q", e.APICode, e.Message)
	}
	if e.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", e.Attempts)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d calls, want 1", n)
	}
}

func TestClient_Do_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(3))
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", resp.Attempts)
	}
}

func TestClient_Do_ReaderBodyReplayedOnRetry(t *testing.T) {
	const payload = `{"prompt":"hello"}`
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		n := len(bodies)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(2))
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/chat/completions",
		Body:   strings.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", resp.Attempts)
	}
	if len(bodies) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(bodies))
	}
	for i, b := range bodies {
		if b != payload {
			t.Errorf("attempt %d body = %q, want %q", i+1, b, payload)
		}
	}
}

func TestClient_Do_MultipartBodyReplayedOnRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("attempt %d: ParseMultipartForm: %v", calls.Load()+1, err)
		}
		if got := r.FormValue("scale"); got != "2" {
			t.Errorf("attempt %d: scale = %q", calls.Load()+1, got)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(2))
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/image/upscale",
		Body: &MultipartBody{
			Fields: map[string]string{"scale": "2"},
			Files: []FileField{{
				FieldName: "image",
				FileName:  "input.png",
				Data:      []byte{0x89, 0x50, 0x4e, 0x47},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server saw %d calls, want 2", n)
	}
}

func TestClient_Do_AttemptBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(2))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d calls, want max_retries+1 = 3", n)
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error type %T", err)
	}
	if e.Code != ErrCodeServer || e.Attempts != 3 {
		t.Errorf("Code=%v Attempts=%d", e.Code, e.Attempts)
	}
}

func TestClient_Do_RateLimitBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("x-ratelimit-remaining-requests", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"rate_limit","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(2))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error type %T", err)
	}
	if e.Code != ErrCodeRateLimitExceeded {
		t.Errorf("Code = %v, want rate_limit_exceeded", e.Code)
	}
	if e.Retryable {
		t.Error("terminal rate limit error must not be retryable")
	}
	if e.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", e.Attempts)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d calls, want 3", n)
	}
}

func TestClient_Do_RateLimitHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("retry-after", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// No retries: the 429 surfaces immediately with its hint attached.
	c := newTestClient(t, srv.URL, fastRetry(0))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error type %T", err)
	}
	if e.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", e.RetryAfter)
	}
	if got := RetryAfterOf(err); got != 7*time.Second {
		t.Errorf("RetryAfterOf = %v", got)
	}
}

func TestClient_Do_TrackerUpdatedOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-limit-requests", "100")
		w.Header().Set("x-ratelimit-remaining-requests", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(0))
	if c.RateLimit() != nil {
		t.Fatal("snapshot before first response should be nil")
	}
	_, _ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})

	snap := c.RateLimit()
	if snap == nil {
		t.Fatal("snapshot missing after 429 response")
	}
	if snap.RemainingRequests == nil || *snap.RemainingRequests != 0 {
		t.Errorf("RemainingRequests = %v", snap.RemainingRequests)
	}
	if !snap.Exhausted() {
		t.Error("Exhausted() = false with zero remaining")
	}
}

func TestClient_Do_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	retry := fastRetry(5)
	retry.InitialBackoff = 10 * time.Second
	retry.MaxBackoff = 30 * time.Second
	c := newTestClient(t, srv.URL, retry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/models"})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !IsCancelled(err) {
			t.Errorf("expected cancelled error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not interrupt backoff")
	}
}

func TestClient_Do_ConcurrentRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("x-ratelimit-remaining-requests", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(1))

	const workers = 50
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("worker %d: error type %T", i, err)
		}
		if e.Code != ErrCodeRateLimitExceeded {
			t.Errorf("worker %d: Code = %v", i, e.Code)
		}
		if e.Attempts != 2 {
			t.Errorf("worker %d: Attempts = %d, want 2", i, e.Attempts)
		}
	}
	if n := calls.Load(); n != workers*2 {
		t.Errorf("server saw %d calls, want %d", n, workers*2)
	}
}

func TestClient_Do_TransportError(t *testing.T) {
	// Point at a closed server for a connection failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, fastRetry(1))
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/models"})

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error type %T", err)
	}
	if e.Code != ErrCodeTransport {
		t.Errorf("Code = %v", e.Code)
	}
	if e.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (transport errors are retryable)", e.Attempts)
	}
}

func TestClient_DoStream_SSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"n\":1}\n\ndata: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(0))
	stream, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Path: "/chat/completions"})
	if err != nil {
		t.Fatalf("DoStream: %v", err)
	}
	defer func() { _ = stream.Close() }()

	if stream.SSE == nil {
		t.Fatal("expected SSE reader for text/event-stream")
	}
	ev, err := stream.SSE.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Data != `{"n":1}` {
		t.Errorf("Data = %q", ev.Data)
	}
}

func TestClient_DoStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"bad key"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(0))
	_, err := c.DoStream(context.Background(), Request{Method: http.MethodPost, Path: "/chat/completions"})
	if !IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestGet_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "text" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"llama-3.3-70b"}]}`))
	}))
	defer srv.Close()

	type model struct {
		ID string `json:"id"`
	}
	type modelList struct {
		Data []model `json:"data"`
	}

	c := newTestClient(t, srv.URL, fastRetry(0))
	resp, err := Get[modelList](c, context.Background(), "/models", WithQueryParam("type", "text"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(resp.Data.Data) != 1 || resp.Data.Data[0].ID != "llama-3.3-70b" {
		t.Errorf("Data = %+v", resp.Data)
	}
}

func TestGet_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(0))
	_, err := Get[map[string]any](c, context.Background(), "/models")
	if !IsDecode(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClient_Do_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("scale"); got != "2" {
			t.Errorf("scale = %q", got)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = f.Close() }()
		if hdr.Filename != "input.png" {
			t.Errorf("Filename = %q", hdr.Filename)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(0))
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/image/upscale",
		Body: &MultipartBody{
			Fields: map[string]string{"scale": "2"},
			Files: []FileField{{
				FieldName:   "image",
				FileName:    "input.png",
				ContentType: "image/png",
				Data:        []byte{0x89, 0x50, 0x4e, 0x47},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}
