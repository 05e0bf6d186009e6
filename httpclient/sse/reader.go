// Package sse decodes Server-Sent Events streams.
//
// The reader is chunk-boundary agnostic: events are reassembled from the
// byte stream regardless of how the transport splits them, so an event
// arriving across two reads decodes identically to one arriving whole.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineBytes bounds a single SSE line. Model responses can carry large
// JSON payloads in one data line.
const maxLineBytes = 1 << 20

// Event represents a single server-sent event.
type Event struct {
	// Event is the SSE event type (from "event:" lines). Empty for data-only events.
	Event string
	// Data is the event payload. Multiple "data:" lines are joined with newlines.
	Data string
	// ID is the event ID (from "id:" lines).
	ID string
}

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next SSE event. Returns io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying resources.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates an SSE reader over a response body.
func NewReader(body io.ReadCloser) Reader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &reader{scanner: sc, body: body}
}

// Next returns the next SSE event. Returns io.EOF when the stream ends.
func (r *reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank line terminates the current event
		if line == "" {
			if hasData {
				return &event, nil
			}
			continue
		}

		// Comment lines start with a colon
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended without a trailing blank line
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *reader) Close() error {
	return r.body.Close()
}

// parseLine splits an SSE line into field and value, stripping the single
// optional space after the colon.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
