package httpclient

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/georgeglarson/venice-go/observability"
)

// startSpan opens a client span for one logical call when tracing is enabled.
// Retries happen inside the same span.
func (c *Client) startSpan(ctx context.Context, req Request, requestID string) (context.Context, trace.Span) {
	if !c.config.Tracing {
		return ctx, nil
	}
	return observability.StartRequestSpan(ctx, req.Method, req.Path, requestID)
}

// endSpan records the outcome and closes the span.
func (c *Client) endSpan(span trace.Span, resp *Response, err *Error) {
	if span == nil {
		return
	}
	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}
	if err != nil {
		span.SetAttributes(attribute.String("venice.error_code", err.Code.String()))
		span.SetStatus(codes.Error, err.Message)
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
