package gather

import (
	"github.com/Tangerg/coop/future"
	"github.com/Tangerg/coop/loop"
)

// Iter drains a fixed set of futures in completion order. It is not
// safe for concurrent use from more than one Body at a time — like a
// Task itself, it's meant to be driven from a single coroutine.
type Iter[T any] struct {
	l         *loop.Loop
	remaining []future.ResultFuture[T]
}

// IterDoneFutures builds an Iter over fs. The slice is copied; fs itself
// is left untouched.
func IterDoneFutures[T any](l *loop.Loop, fs ...future.ResultFuture[T]) *Iter[T] {
	remaining := make([]future.ResultFuture[T], len(fs))
	copy(remaining, fs)
	return &Iter[T]{l: l, remaining: remaining}
}

// Len reports how many futures have not yet been yielded by Next.
func (it *Iter[T]) Len() int { return len(it.remaining) }

// Next suspends the calling Body until one of the remaining futures
// completes, then returns it with the remaining set shrunk by one.
// Reports false once every future has been yielded.
func (it *Iter[T]) Next(y *future.Yield) (future.ResultFuture[T], bool) {
	if len(it.remaining) == 0 {
		return nil, false
	}

	for i, f := range it.remaining {
		if f.IsFinished() {
			it.remaining = removeAt(it.remaining, i)
			return f, true
		}
	}

	signal := future.CreatePromise[int](it.l, "gather.next", nil)
	cbs := make([]*future.Callback, len(it.remaining))
	for i, f := range it.remaining {
		i, f := i, f
		cb := future.NewCallback(func(future.Awaitable) {
			// First finisher wins; later calls race onto an already
			// finished signal and FinishedError is silently dropped —
			// exactly one index is ever observed by Await below.
			_ = signal.SetResult(i)
		})
		cbs[i] = cb
		_ = f.AddCallback(cb)
	}

	idx, err := future.Await[int](y, signal.Future())
	if err != nil {
		for j, f := range it.remaining {
			f.RemoveCallback(cbs[j])
		}
		return nil, false
	}

	for j, f := range it.remaining {
		if j != idx {
			f.RemoveCallback(cbs[j])
		}
	}

	done := it.remaining[idx]
	it.remaining = removeAt(it.remaining, idx)
	return done, true
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
