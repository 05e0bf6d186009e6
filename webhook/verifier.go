package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Default header names for inbound webhook deliveries.
const (
	DefaultSignatureHeader = "X-Venice-Signature"
	DefaultTimestampHeader = "X-Venice-Timestamp"
)

// DefaultTolerance is the replay-protection window applied when none is
// configured.
const DefaultTolerance = 5 * time.Minute

// SignatureError reports a failed webhook verification. It is never
// retryable.
type SignatureError struct {
	// Reason describes why verification failed.
	Reason string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return "webhook: invalid signature: " + e.Reason
}

// Verifier validates webhook signatures against a shared secret. It holds no
// state across calls and is safe for concurrent use.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithTolerance overrides the replay-protection window.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.tolerance = d }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks signatureHex against HMAC-SHA256(secret, timestamp+"."+payload)
// and rejects deliveries whose timestamp falls outside the tolerance window.
// It returns nil on success and a *SignatureError on any failure.
func (v *Verifier) Verify(payload []byte, signatureHex, timestamp string) error {
	if v.secret == "" {
		return &SignatureError{Reason: "secret is required"}
	}
	if signatureHex == "" {
		return &SignatureError{Reason: "signature is required"}
	}
	if timestamp == "" {
		return &SignatureError{Reason: "timestamp is required"}
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return &SignatureError{Reason: "timestamp is not a Unix timestamp"}
	}

	now := v.now()
	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return &SignatureError{Reason: fmt.Sprintf("timestamp outside tolerance window (%s)", v.tolerance)}
	}

	given, err := hex.DecodeString(signatureHex)
	if err != nil {
		return &SignatureError{Reason: "signature is not valid hex"}
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)

	if !hmac.Equal(given, mac.Sum(nil)) {
		return &SignatureError{Reason: "signature mismatch"}
	}
	return nil
}

// Sign computes the hex signature for a payload at the given timestamp.
// Useful for tests and for emitting deliveries in development.
func Sign(secret string, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify is the package-level form with the default tolerance window.
func Verify(payload []byte, signatureHex, timestamp, secret string) error {
	return NewVerifier(secret).Verify(payload, signatureHex, timestamp)
}

// ExtractHeaders pulls the signature and timestamp from inbound request
// headers using the default header names.
func ExtractHeaders(h http.Header) (signature, timestamp string) {
	return h.Get(DefaultSignatureHeader), h.Get(DefaultTimestampHeader)
}
