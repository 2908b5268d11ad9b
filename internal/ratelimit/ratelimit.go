// Package ratelimit implements the sliding-window request throttle shared by
// the upstream source clients.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limiter enforces at most limit requests per window. It keeps the timestamps
// of recent requests and, when the window is full, makes the caller wait until
// the oldest timestamp falls out of it. Safe for concurrent use; the pipeline
// itself is single-threaded per source, but the two first-pass sources run on
// separate goroutines.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time

	now func() time.Time // injectable for testing
}

// New creates a limiter allowing limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithNow sets the clock used by the limiter. Testing hook.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Acquire blocks until a request may legally be sent, then records its
// timestamp. Returns early with the context error on cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		// Discard timestamps that have left the window.
		cutoff := now.Add(-l.window)
		kept := l.stamps[:0]
		for _, ts := range l.stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		l.stamps = kept

		if len(l.stamps) < l.limit {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.window - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		zap.L().Debug("rate limit reached, waiting",
			zap.Duration("wait", wait),
			zap.Int("limit", l.limit),
			zap.Duration("window", l.window),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending returns the number of timestamps currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
