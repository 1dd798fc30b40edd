package gather

import (
	"github.com/Tangerg/coop/future"
	"github.com/Tangerg/coop/loop"
)

// AwaitableIter is the untyped counterpart to Iter: it drains a
// heterogeneous set of Awaitables in completion order without retrieving
// any typed result, which is all taskgroup's join protocol needs — a
// TaskGroup's children don't share one result type the way Iter[T]
// requires.
type AwaitableIter struct {
	l         *loop.Loop
	remaining []future.Awaitable
}

// IterDoneAwaitables builds an AwaitableIter over as. The slice is
// copied; as itself is left untouched.
func IterDoneAwaitables(l *loop.Loop, as ...future.Awaitable) *AwaitableIter {
	remaining := make([]future.Awaitable, len(as))
	copy(remaining, as)
	return &AwaitableIter{l: l, remaining: remaining}
}

// Len reports how many Awaitables have not yet been yielded by Next.
func (it *AwaitableIter) Len() int { return len(it.remaining) }

// Next suspends the calling Body until one of the remaining Awaitables
// completes, then returns it with the remaining set shrunk by one. If
// the suspension itself is interrupted by a cancellation thrown into the
// caller, Next returns that Cancelled and leaves the remaining set
// unchanged (every registered callback is cleaned up first).
func (it *AwaitableIter) Next(y *future.Yield) (future.Awaitable, *future.Cancelled) {
	if len(it.remaining) == 0 {
		return nil, nil
	}

	for i, a := range it.remaining {
		if a.IsFinished() {
			it.remaining = removeAwaitableAt(it.remaining, i)
			return a, nil
		}
	}

	signal := future.CreatePromise[int](it.l, "taskgroup.join", nil)
	cbs := make([]*future.Callback, len(it.remaining))
	for i, a := range it.remaining {
		i, a := i, a
		cb := future.NewCallback(func(future.Awaitable) {
			_ = signal.SetResult(i)
		})
		cbs[i] = cb
		_ = a.AddCallback(cb)
	}

	idx, err := future.Await[int](y, signal.Future())
	if err != nil {
		for j, a := range it.remaining {
			a.RemoveCallback(cbs[j])
		}
		c, _ := err.(*future.Cancelled)
		if c == nil {
			c = future.NewCancelled(err.Error())
		}
		return nil, c
	}

	for j, a := range it.remaining {
		if j != idx {
			a.RemoveCallback(cbs[j])
		}
	}

	done := it.remaining[idx]
	it.remaining = removeAwaitableAt(it.remaining, idx)
	return done, nil
}

func removeAwaitableAt(s []future.Awaitable, i int) []future.Awaitable {
	out := make([]future.Awaitable, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
