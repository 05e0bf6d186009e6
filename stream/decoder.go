// Package stream decodes typed chunks from streaming API responses.
//
// Chat completions and similar endpoints stream their output as
// Server-Sent Events carrying one JSON chunk per event, terminated by a
// [DONE] sentinel. Decoder pulls events one at a time and unmarshals each
// payload into the caller's chunk type.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/georgeglarson/venice-go/httpclient"
	"github.com/georgeglarson/venice-go/httpclient/sse"
)

// doneSentinel marks the end of a stream. It is a literal data payload,
// not JSON.
const doneSentinel = "[DONE]"

// Decoder reads typed chunks from an SSE stream. It is pull-based: each
// Next call consumes exactly one event. Not safe for concurrent use.
type Decoder[T any] struct {
	ctx    context.Context
	events sse.Reader
	closer io.Closer
	err    error
	done   bool
}

// NewDecoder creates a decoder over a streaming response. The decoder owns
// the response; Close releases it.
func NewDecoder[T any](ctx context.Context, resp *httpclient.StreamResponse) (*Decoder[T], error) {
	if resp.SSE == nil {
		_ = resp.Close()
		return nil, httpclient.NewDecodeError(errNotEventStream)
	}
	return &Decoder[T]{
		ctx:    ctx,
		events: resp.SSE,
		closer: resp,
	}, nil
}

var errNotEventStream = errors.New("response is not a text/event-stream")

// Next returns the next decoded chunk. It returns io.EOF after the [DONE]
// sentinel or when the stream ends. A malformed payload is a terminal
// decode error: the same error is returned on every subsequent call, and
// no further events are consumed.
func (d *Decoder[T]) Next() (T, error) {
	var zero T

	if d.err != nil {
		return zero, d.err
	}
	if d.done {
		return zero, io.EOF
	}

	if err := d.ctx.Err(); err != nil {
		d.err = httpclient.NewCancelledError(err)
		return zero, d.err
	}

	event, err := d.events.Next()
	if err != nil {
		if err == io.EOF {
			d.done = true
			return zero, io.EOF
		}
		if d.ctx.Err() != nil {
			d.err = httpclient.NewCancelledError(d.ctx.Err())
		} else {
			d.err = httpclient.NewTransportError(err)
		}
		return zero, d.err
	}

	if event.Data == doneSentinel {
		d.done = true
		return zero, io.EOF
	}

	var chunk T
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		d.err = httpclient.NewDecodeError(err)
		return zero, d.err
	}
	return chunk, nil
}

// Close releases the underlying stream. Safe to call more than once.
func (d *Decoder[T]) Close() error {
	if d.closer == nil {
		return nil
	}
	c := d.closer
	d.closer = nil
	return c.Close()
}

// Collect drains the stream and returns all chunks. The stream is closed
// before returning.
func Collect[T any](d *Decoder[T]) ([]T, error) {
	defer func() { _ = d.Close() }()

	var chunks []T
	for {
		chunk, err := d.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}
