// Package ratelimit paces outbound calls per upstream: a floor interval with
// jitter between consecutive calls, an optional trailing-window cap, and a
// progressive backoff shared by every caller of the same upstream.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"solana-sniper/internal/observability"
)

// Default backoff bounds for throttled upstreams.
const (
	DefaultRetryAfter = 5 * time.Second
	MaxBackoff        = 60 * time.Second

	windowSpan = 60 * time.Second
)

// Config describes the pacing rules for one upstream.
type Config struct {
	// Name identifies the upstream in logs and stats.
	Name string

	// MinInterval is the floor spacing between consecutive calls.
	MinInterval time.Duration

	// JitterMin/JitterMax bound the uniform jitter added to MinInterval,
	// resampled on every call.
	JitterMin time.Duration
	JitterMax time.Duration

	// MaxPerMinute caps calls within a trailing 60-second window.
	// Zero disables the cap.
	MaxPerMinute int
}

// Stats is a read-only view of limiter state for observability.
type Stats struct {
	Name          string
	CallsInWindow int
	LifetimeCalls uint64
	BackoffDelay  time.Duration
}

// Limiter enforces the pacing rules of one upstream. All methods are safe for
// concurrent use; every unit of work calling the same upstream shares one
// instance.
type Limiter struct {
	cfg Config

	mu           sync.Mutex
	lastCall     time.Time
	window       []time.Time
	lifetime     uint64
	backoffDelay time.Duration
	backoffUntil time.Time
}

// New creates a limiter for one upstream.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg}
}

// Acquire blocks until it is safe to issue one call to the upstream.
// Returns early with the context error on cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryReserve()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryReserve records a call slot if one is available now, otherwise returns
// how long the caller should sleep before trying again.
func (l *Limiter) tryReserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if l.backoffUntil.After(now) {
		return l.backoffUntil.Sub(now), false
	}

	l.pruneWindow(now)
	if l.cfg.MaxPerMinute > 0 && len(l.window) >= l.cfg.MaxPerMinute {
		return l.window[0].Add(windowSpan).Sub(now), false
	}

	if !l.lastCall.IsZero() {
		next := l.lastCall.Add(l.cfg.MinInterval + l.jitter())
		if next.After(now) {
			return next.Sub(now), false
		}
	}

	l.lastCall = now
	l.window = append(l.window, now)
	l.lifetime++
	return 0, true
}

// jitter samples a uniform delay in [JitterMin, JitterMax].
func (l *Limiter) jitter() time.Duration {
	span := l.cfg.JitterMax - l.cfg.JitterMin
	if span <= 0 {
		return l.cfg.JitterMin
	}
	return l.cfg.JitterMin + time.Duration(rand.Int63n(int64(span)))
}

// pruneWindow drops call timestamps older than the trailing window.
func (l *Limiter) pruneWindow(now time.Time) {
	cutoff := now.Add(-windowSpan)
	i := 0
	for i < len(l.window) && l.window[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// Throttle registers a "too many requests" signal. The backoff delay starts
// from the server-provided retry hint and doubles on repeated throttling,
// capped at MaxBackoff. All callers block until the deadline passes.
func (l *Limiter) Throttle(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := retryAfter
	if doubled := l.backoffDelay * 2; doubled > next {
		next = doubled
	}
	if next > MaxBackoff {
		next = MaxBackoff
	}
	l.backoffDelay = next
	l.backoffUntil = time.Now().Add(next)
	observability.RecordThrottle(l.cfg.Name)
}

// Success resets the backoff after one successful call.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoffDelay = 0
	l.backoffUntil = time.Time{}
}

// Stats returns a snapshot of the limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneWindow(time.Now())
	return Stats{
		Name:          l.cfg.Name,
		CallsInWindow: len(l.window),
		LifetimeCalls: l.lifetime,
		BackoffDelay:  l.backoffDelay,
	}
}
