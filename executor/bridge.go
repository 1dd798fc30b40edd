package executor

import (
	"fmt"

	"github.com/Tangerg/coop/future"
	"github.com/Tangerg/coop/loop"
)

// BridgeOption configures a Bridge at construction time.
type BridgeOption func(*Bridge)

// WithLimiter bounds how many submissions a Bridge runs concurrently,
// regardless of how large the underlying Pool's own bound is.
func WithLimiter(l *Limiter) BridgeOption {
	return func(b *Bridge) { b.limiter = l }
}

// Bridge runs blocking work on a Pool and completes a Promise back on the
// loop goroutine via CallSoonThreadSafe.
type Bridge struct {
	pool    Pool
	limiter *Limiter
}

// NewBridge constructs a Bridge over pool. A nil pool uses DefaultPool().
func NewBridge(pool Pool, opts ...BridgeOption) *Bridge {
	if pool == nil {
		pool = DefaultPool()
	}
	b := &Bridge{pool: pool}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Work is the function signature a Bridge runs off-loop. interrupt is
// closed when Submission.Cancel is called; cancelling the Future by any
// other route leaves it open. Well-behaved work should select on it to
// return early.
type Work[T any] func(interrupt <-chan struct{}) (T, error)

// Submission is the handle a Bridge hands back: the Future observers
// await, plus the ability to request interruption of still-running work.
type Submission[T any] struct {
	future    *future.Future[T]
	promise   future.Promise[T]
	interrupt chan struct{}
	loop      *loop.Loop
}

// Future returns the Future observers should await.
func (s *Submission[T]) Future() *future.Future[T] { return s.future }

// Cancel requests cancellation: it closes the interrupt channel so
// cooperative work notices, and (best effort) marks the Future cancelled
// if it hasn't already completed. A plain Future's cancel does not
// recurse into anything — there is no inner task here — it's this
// explicit interrupt channel that stands in for "inner work".
func (s *Submission[T]) Cancel(msg string) {
	close(s.interrupt)
	s.loop.CallSoonThreadSafe(func() {
		_ = s.promise.Cancel(msg)
	}, nil)
}

// Submit runs work on b's Pool and returns a Submission whose Future
// completes, on the loop goroutine, once work returns or panics.
//
// Submit is a free function, not a method on Bridge, because Go methods
// cannot introduce new type parameters.
func Submit[T any](b *Bridge, l *loop.Loop, label string, work Work[T]) *Submission[T] {
	promise := future.CreatePromise[T](l, label, nil)
	sub := &Submission[T]{
		future:    promise.Future(),
		promise:   promise,
		interrupt: make(chan struct{}),
		loop:      l,
	}

	b.pool.Go(func() {
		if b.limiter != nil {
			b.limiter.Acquire()
			defer b.limiter.Release()
		}
		value, err := runWork(work, sub.interrupt)
		l.CallSoonThreadSafe(func() {
			if err != nil {
				if _, isCancelled := err.(*future.Cancelled); isCancelled {
					_ = promise.Cancel(err)
				} else {
					_ = promise.SetException(err)
				}
				return
			}
			_ = promise.SetResult(value)
		}, nil)
	})

	return sub
}

func runWork[T any](work Work[T], interrupt <-chan struct{}) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor: panic in submitted work: %v", r)
		}
	}()
	return work(interrupt)
}
