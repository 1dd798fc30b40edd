package executor

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter is a counting semaphore bounding how many Bridge submissions
// may run concurrently. Built on golang.org/x/sync/semaphore.Weighted
// rather than a hand-rolled buffered channel, so Acquire can be offered
// a non-blocking counterpart (TryAcquire) without reimplementing the
// counting logic.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter builds a Limiter allowing at most max concurrent holders.
// Panics if max <= 0.
func NewLimiter(max int) *Limiter {
	if max <= 0 {
		panic("executor: limiter max must be > 0")
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(max))}
}

// Acquire blocks until a slot is available.
func (l *Limiter) Acquire() {
	_ = l.sem.Acquire(context.Background(), 1)
}

// TryAcquire claims a slot without blocking, reporting whether one was
// available.
func (l *Limiter) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release frees a slot for another waiter.
func (l *Limiter) Release() {
	l.sem.Release(1)
}
