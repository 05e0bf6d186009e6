package webhook

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// MiddlewareConfig configures the webhook verification middleware.
type MiddlewareConfig struct {
	// Secret is the shared webhook secret.
	Secret string
	// SignatureHeader overrides the signature header name.
	SignatureHeader string
	// TimestampHeader overrides the timestamp header name.
	TimestampHeader string
	// Tolerance overrides the replay-protection window.
	Tolerance time.Duration
	// MaxBodyBytes caps how much of the delivery body is read. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Middleware returns a Gin middleware that verifies inbound webhook
// deliveries before the handler runs. The request body is restored for the
// handler after verification.
func Middleware(cfg MiddlewareConfig) gin.HandlerFunc {
	sigHeader := cfg.SignatureHeader
	if sigHeader == "" {
		sigHeader = DefaultSignatureHeader
	}
	tsHeader := cfg.TimestampHeader
	if tsHeader == "" {
		tsHeader = DefaultTimestampHeader
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	var opts []VerifierOption
	if cfg.Tolerance > 0 {
		opts = append(opts, WithTolerance(cfg.Tolerance))
	}
	verifier := NewVerifier(cfg.Secret, opts...)

	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "unable to read request body",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		signature := c.GetHeader(sigHeader)
		timestamp := c.GetHeader(tsHeader)
		if err := verifier.Verify(body, signature, timestamp); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Next()
	}
}
