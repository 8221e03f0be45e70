package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a single admission attempt against a window.
type Result struct {
	Allowed bool `json:"allowed"`

	// RetryAfterSeconds is set on rejection and is always >= 1, suitable
	// for a Retry-After header.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// Window is a sliding-window rate limiter keyed by arbitrary strings.
// Each key holds the timestamps of events still inside the window; expired
// timestamps are pruned lazily on every Consume call, never by a background
// sweeper. Entries survive for the process lifetime.
//
// Two concurrent Consume calls for the same key may both observe the
// pre-mutation state and both be allowed; the limiter deters abuse rather
// than enforcing an exact quota.
type Window struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

// NewWindow creates an empty sliding-window limiter.
func NewWindow() *Window {
	return &Window{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Consume records one event for key if fewer than limit events occurred
// within the trailing window. On rejection the stored sequence is still
// pruned, and RetryAfterSeconds reports when the oldest retained event
// falls out of the window.
func (w *Window) Consume(key string, limit int, window time.Duration) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	windowStart := now.Add(-window)

	kept := w.events[key][:0:0]
	for _, ts := range w.events[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		w.events[key] = kept
		retryAt := kept[0].Add(window)
		return Result{Allowed: false, RetryAfterSeconds: secondsUntil(now, retryAt)}
	}

	w.events[key] = append(kept, now)
	return Result{Allowed: true}
}

// Size returns the number of unexpired events currently retained for key
// without mutating state.
func (w *Window) Size(key string, window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	windowStart := w.now().Add(-window)
	count := 0
	for _, ts := range w.events[key] {
		if ts.After(windowStart) {
			count++
		}
	}
	return count
}

// secondsUntil rounds the remaining wait up to whole seconds, minimum 1.
func secondsUntil(now, retryAt time.Time) int {
	remaining := retryAt.Sub(now)
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
