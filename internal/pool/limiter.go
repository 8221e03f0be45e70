package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBusy is returned when every slot is occupied and the wait timeout
// expires. Callers should surface a retry hint to the client.
var ErrBusy = errors.New("too many concurrent requests, please try again later")

// Limiter bounds the number of in-flight operations using a semaphore.
// Requests that cannot acquire a slot within maxWait fail with ErrBusy.
type Limiter struct {
	sem     chan struct{}
	maxWait time.Duration
	active  int32
	total   int64
}

// NewLimiter creates a limiter allowing at most maxConcurrent simultaneous
// operations, each waiting up to maxWait for a free slot.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}

	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, the wait timeout expires, or ctx is
// cancelled. Callers must Release exactly once per successful Acquire.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		atomic.AddInt32(&l.active, 1)
		atomic.AddInt64(&l.total, 1)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
}

// Release frees a previously acquired slot.
func (l *Limiter) Release() {
	atomic.AddInt32(&l.active, -1)
	<-l.sem
}

// Stats is a snapshot of the limiter state for the stats endpoint.
type Stats struct {
	Active        int32 `json:"active"`
	MaxConcurrent int   `json:"max_concurrent"`
	TotalAcquired int64 `json:"total_acquired"`
}

// GetStats returns the current limiter counters.
func (l *Limiter) GetStats() Stats {
	return Stats{
		Active:        atomic.LoadInt32(&l.active),
		MaxConcurrent: cap(l.sem),
		TotalAcquired: atomic.LoadInt64(&l.total),
	}
}
