package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/georgeglarson/venice-go/logger"
)

// Tracker holds the most recent rate-limit snapshot for a client. It is safe
// for concurrent use: updates replace the whole snapshot atomically and reads
// never block. Freshness is best-effort; a snapshot may be superseded
// immediately after it is read.
type Tracker struct {
	names HeaderNames
	cur   atomic.Pointer[Snapshot]
	now   func() time.Time
	log   *logger.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger enables throttle logging.
func WithLogger(log *logger.Logger) TrackerOption {
	return func(t *Tracker) {
		if log != nil {
			t.log = log.WithComponent("ratelimit")
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker reading the given header names.
func NewTracker(names HeaderNames, opts ...TrackerOption) *Tracker {
	t := &Tracker{names: names, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HeaderNames returns the configured header names.
func (t *Tracker) HeaderNames() HeaderNames {
	return t.names
}

// Update parses headers into a fresh snapshot and replaces the stored value.
// The previous snapshot is discarded whole; fields are never merged across
// responses.
func (t *Tracker) Update(headers map[string]string) {
	t.cur.Store(ParseSnapshot(headers, t.names, t.now()))
}

// Snapshot returns the most recent snapshot, or nil if no response has been
// observed yet.
func (t *Tracker) Snapshot() *Snapshot {
	return t.cur.Load()
}

// Throttle blocks until the reported reset time when the current snapshot
// shows zero remaining capacity, bounded by maxWait. When capacity remains,
// no reset time is known, or the snapshot is absent, it returns immediately
// and lets the server's 429 drive the retry path. A done context interrupts
// the wait and returns ctx.Err().
func (t *Tracker) Throttle(ctx context.Context, maxWait time.Duration) error {
	snap := t.cur.Load()
	if !snap.Exhausted() {
		return nil
	}

	now := t.now()
	reset, ok := snap.NextReset(now)
	if !ok {
		return nil
	}

	wait := reset.Sub(now)
	if maxWait > 0 && wait > maxWait {
		wait = maxWait
	}
	if wait <= 0 {
		return nil
	}

	if t.log != nil {
		t.log.Debug("rate limit exhausted, waiting for reset",
			logger.Fields(logger.FieldBackoff, wait.Milliseconds()))
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
