package dedup

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Entry records one sighting of a content hash.
type Entry struct {
	IP          string    `json:"ip"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Result is the outcome of a duplicate check.
type Result struct {
	Duplicate         bool `json:"duplicate"`
	RetryAfterSeconds int  `json:"retry_after_seconds,omitempty"`
}

// Detector suppresses repeat uploads of identical content by the same actor
// inside a fixed window. A sighting counts as a duplicate only when an
// unexpired entry for the same hash shares the origin IP or the device
// fingerprint; unrelated actors uploading identical bytes are not duplicates
// of each other.
//
// Entries are pruned on access; the backing cache additionally expires whole
// hash records after the window so memory stays bounded without a manual
// sweep.
type Detector struct {
	mu     sync.Mutex
	window time.Duration
	seen   *gocache.Cache
	now    func() time.Time
}

// NewDetector creates a detector with the given dedup window.
func NewDetector(window time.Duration) *Detector {
	return &Detector{
		window: window,
		seen:   gocache.New(window, 2*window),
		now:    time.Now,
	}
}

// Check reports whether hash was already seen from the same IP or
// fingerprint inside the window. When not a duplicate, the sighting is
// recorded.
func (d *Detector) Check(hash, ip, fingerprint string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	var entries []Entry
	if cached, ok := d.seen.Get(hash); ok {
		for _, e := range cached.([]Entry) {
			if now.Sub(e.ObservedAt) < d.window {
				entries = append(entries, e)
			}
		}
	}

	for _, e := range entries {
		if e.IP == ip || (fingerprint != "" && e.Fingerprint == fingerprint) {
			retryAt := e.ObservedAt.Add(d.window)
			return Result{Duplicate: true, RetryAfterSeconds: secondsUntil(now, retryAt)}
		}
	}

	entries = append(entries, Entry{IP: ip, Fingerprint: fingerprint, ObservedAt: now})
	d.seen.Set(hash, entries, d.window)
	return Result{Duplicate: false}
}

func secondsUntil(now, retryAt time.Time) int {
	remaining := retryAt.Sub(now)
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
