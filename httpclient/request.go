package httpclient

import (
	"io"
	"net/http"

	"github.com/georgeglarson/venice-go/httpclient/sse"
)

// Request describes an outbound API request. The pipeline never inspects the
// semantic fields of Body; it only serializes it.
type Request struct {
	// Method is the HTTP method (GET, POST, DELETE, etc).
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL if BaseURL
	// is empty.
	Path string
	// Headers are request-specific headers (merged with client defaults).
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body is the request body. Accepts io.Reader, []byte, string,
	// *MultipartBody, or any value that will be JSON-encoded. Reader bodies
	// are read fully before the first attempt so retries resend the same
	// bytes.
	Body any
	// Auth overrides the client-level auth for this request.
	Auth *AuthConfig
}

// Response is the result of one completed API request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers, flattened to single values.
	Headers map[string]string
	// Body is the raw response body.
	Body []byte
	// RequestID is the client-generated ID correlating logs and traces for
	// this logical call.
	RequestID string
	// Attempts is how many attempts the pipeline made to obtain this response.
	Attempts int
}

// ContentType returns the response content type header.
func (r *Response) ContentType() string {
	return r.Headers["Content-Type"]
}

// StreamResponse wraps a streaming API response. The caller must Close it.
type StreamResponse struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers, flattened to single values.
	Headers map[string]string
	// SSE is the Server-Sent Events reader (for text/event-stream responses).
	SSE sse.Reader
	// Body is the raw streaming body (for non-SSE streams).
	Body io.ReadCloser
	// RequestID is the client-generated ID correlating logs and traces.
	RequestID string

	rawResp *http.Response
}

// Close releases all resources associated with the stream.
func (r *StreamResponse) Close() error {
	if r.SSE != nil {
		return r.SSE.Close()
	}
	if r.Body != nil {
		return r.Body.Close()
	}
	if r.rawResp != nil && r.rawResp.Body != nil {
		return r.rawResp.Body.Close()
	}
	return nil
}
