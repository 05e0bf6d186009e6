package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies pipeline errors.
type ErrorCode int

const (
	// ErrCodeTransport indicates a connection-level failure (refused, DNS, TLS).
	ErrCodeTransport ErrorCode = iota
	// ErrCodeTimeout indicates a request or connection timeout.
	ErrCodeTimeout
	// ErrCodeAuth indicates an authentication/authorization failure (401/403).
	ErrCodeAuth
	// ErrCodeNotFound indicates the resource was not found (404).
	ErrCodeNotFound
	// ErrCodeRateLimited indicates a single 429 response.
	ErrCodeRateLimited
	// ErrCodeRateLimitExceeded indicates the retry budget was exhausted on
	// repeated 429 responses.
	ErrCodeRateLimitExceeded
	// ErrCodeValidation indicates a client-side or 4xx validation error.
	ErrCodeValidation
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
	// ErrCodeDecode indicates a malformed response body or stream frame.
	ErrCodeDecode
	// ErrCodeCancelled indicates the caller aborted the call.
	ErrCodeCancelled
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTransport:
		return "transport"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeAuth:
		return "auth"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeRateLimited:
		return "rate_limited"
	case ErrCodeRateLimitExceeded:
		return "rate_limit_exceeded"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	case ErrCodeDecode:
		return "decode"
	case ErrCodeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a structured pipeline error.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// APICode is the machine-readable code from the API error body, if any.
	APICode string
	// Message describes the error.
	Message string
	// Retryable indicates whether the attempt can be retried.
	Retryable bool
	// RetryAfter is the server-supplied reset hint on a 429, if any.
	RetryAfter time.Duration
	// Attempts is the number of attempts made when the error became terminal.
	// Zero until the pipeline gives up.
	Attempts int
	// Body is the raw response body (may be nil).
	Body []byte
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.APICode != "":
		return fmt.Sprintf("venice: %s (HTTP %d, %s): %s", e.Code, e.StatusCode, e.APICode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("venice: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("venice: %s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// apiErrorBody is the JSON error shape returned on non-2xx responses.
type apiErrorBody struct {
	Error json.RawMessage `json:"error"`
}

type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseAPIError extracts the machine-readable code and human-readable
// message from an error response body. The API usually returns
// {"error":{"code":..,"message":..}} but older endpoints return
// {"error":"plain text"}; anything else falls back to the raw body.
func parseAPIError(body []byte) (code, message string) {
	var outer apiErrorBody
	if err := json.Unmarshal(body, &outer); err != nil || len(outer.Error) == 0 {
		return "", ""
	}

	var detail apiErrorDetail
	if err := json.Unmarshal(outer.Error, &detail); err == nil && (detail.Code != "" || detail.Message != "") {
		return detail.Code, detail.Message
	}

	var plain string
	if err := json.Unmarshal(outer.Error, &plain); err == nil {
		return "api_error", plain
	}
	return "", ""
}

// NewTransportError creates a connection-level error.
func NewTransportError(err error) *Error {
	return &Error{
		Code:      ErrCodeTransport,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return &Error{
		Code:      ErrCodeTimeout,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// NewDecodeError creates a decode error. Decode failures are terminal, never
// retried.
func NewDecodeError(err error) *Error {
	return &Error{
		Code:    ErrCodeDecode,
		Message: err.Error(),
		Err:     err,
	}
}

// NewCancelledError wraps a context error as a cancellation outcome.
func NewCancelledError(err error) *Error {
	return &Error{
		Code:    ErrCodeCancelled,
		Message: err.Error(),
		Err:     err,
	}
}

// NewValidationError creates a client-side validation error.
func NewValidationError(msg string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// ClassifyStatusCode converts a non-2xx response into a typed error,
// folding in the API error body when present. Returns nil for 2xx.
func ClassifyStatusCode(statusCode int, body []byte) *Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	e := &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d", statusCode),
		Body:       body,
	}
	if code, msg := parseAPIError(body); msg != "" {
		e.APICode = code
		e.Message = msg
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		e.Code = ErrCodeAuth
	case statusCode == 404:
		e.Code = ErrCodeNotFound
	case statusCode == 429:
		e.Code = ErrCodeRateLimited
		e.Retryable = true
	case statusCode >= 400 && statusCode < 500:
		e.Code = ErrCodeValidation
	case statusCode >= 500:
		e.Code = ErrCodeServer
		e.Retryable = true
	default:
		e.Code = ErrCodeServer
	}
	return e
}

// IsRetryable reports whether the pipeline may retry after err.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// IsRateLimited checks for a 429 outcome (single response or exhausted budget).
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) &&
		(e.Code == ErrCodeRateLimited || e.Code == ErrCodeRateLimitExceeded)
}

// IsAuth checks for an authentication failure.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeAuth
}

// IsNotFound checks for a 404 outcome.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeNotFound
}

// IsDecode checks for a malformed body or stream frame.
func IsDecode(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeDecode
}

// IsCancelled checks for a caller-initiated abort.
func IsCancelled(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeCancelled
}

// RetryAfterOf extracts the server reset hint from err, or zero.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
