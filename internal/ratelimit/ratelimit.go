// Package ratelimit provides a per-key fixed-window rate limiter for the
// HTTP API. Limiters are explicit values constructed by the caller and
// passed by handle; there is no package-level state.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one [Limiter.Allow] call.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the window's request budget.
	Limit int

	// Remaining is how many requests are left in the current window. Zero
	// when the request was denied.
	Remaining int

	// ResetTime is when the current window ends and the budget refills.
	ResetTime time.Time
}

// Limiter is a fixed-window rate limiter keyed by an arbitrary string
// (typically user ID plus route class). Safe for concurrent use.
type Limiter struct {
	now func() time.Time

	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*windowState
}

type windowState struct {
	start time.Time
	count int
}

// Option configures a [Limiter].
type Option func(*Limiter)

// WithClock overrides the limiter clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing limit requests per window. A non-positive
// limit disables limiting: every request is allowed.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*windowState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLimit replaces the request budget and window length. Windows already in
// progress keep their counts and are judged against the new bounds. The
// config watcher uses this for hot reload.
func (l *Limiter) SetLimit(limit int, window time.Duration) {
	l.mu.Lock()
	l.limit = limit
	l.window = window
	l.mu.Unlock()
}

// Allow records one request for key and reports whether it fits in the
// current window. Expired windows encountered on access are dropped.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit <= 0 {
		return Decision{Allowed: true, Limit: 0, Remaining: 0}
	}

	l.sweepLocked(now)

	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.window {
		w = &windowState{start: now}
		l.windows[key] = w
	}

	reset := w.start.Add(l.window)
	if w.count >= l.limit {
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, ResetTime: reset}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		ResetTime: reset,
	}
}

// sweepLocked drops windows that ended before now. Keeps the map from
// accumulating one entry per key ever seen.
func (l *Limiter) sweepLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
		}
	}
}
