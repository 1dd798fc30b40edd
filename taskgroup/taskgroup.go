package taskgroup

import (
	"context"
	"errors"

	"github.com/Tangerg/coop/future"
	"github.com/Tangerg/coop/gather"
	"github.com/Tangerg/coop/loop"
)

// ErrNoGovernor is returned by TaskGroup.Cancel when the group was built
// with NewTaskGroup directly and never wired to a governing Task (only
// Run does that wiring).
var ErrNoGovernor = errors.New("taskgroup: group has no governing task to cancel")

type childHandle struct {
	awaitable future.Awaitable
	errFn     func() error
}

// TaskGroup tracks the children spawned within one structured-concurrency
// scope. Like a Task, it's confined to the loop goroutine: every method
// here must be called from code running on the loop (a Task body, or the
// scope's own governing task).
type TaskGroup struct {
	l        *loop.Loop
	children []childHandle
	governor future.TaskHandle
}

// NewTaskGroup builds a bare TaskGroup not yet wired to a governing task.
// Prefer Run for top-level scopes; construct directly only when nesting
// a scope inside an existing Task's Body, where Join is driven with that
// Body's own *future.Yield.
func NewTaskGroup(l *loop.Loop) *TaskGroup {
	return &TaskGroup{l: l}
}

// Spawn starts a child task under tg and records it for the scope's
// join/cancel bookkeeping. A free function, not a method, because Go
// methods can't introduce a type parameter the receiver doesn't already
// have. Spawn does not check whether tg's Join has already begun.
func Spawn[T any](tg *TaskGroup, label string, body future.Body[T]) *future.Task[T] {
	t := future.CreateTask(tg.l, label, body)
	tg.children = append(tg.children, childHandle{
		awaitable: t,
		errFn: func() error {
			err, _ := t.Exception()
			return err
		},
	})
	return t
}

// Startable is satisfied by any future.Task[T], whatever its result type.
type Startable interface {
	StartedFuture() *future.Future[struct{}]
}

// WaitStarted suspends the calling Body until t's coroutine has taken its
// first step (or finished without ever taking one). The wait is shielded:
// cancelling the calling Body ends the wait with that Cancelled, but never
// cancels t's StartedFuture.
func WaitStarted(y *future.Yield, t Startable) error {
	_, err := future.Await[struct{}](y, future.Shield[struct{}](t.StartedFuture()))
	return err
}

// Cancel cancels the scope's governing task, which unwinds through Join's
// interruptible wait exactly as an externally-delivered cancellation
// would. Only meaningful for a TaskGroup built by Run.
func (tg *TaskGroup) Cancel(msg string) error {
	if tg.governor == nil {
		return ErrNoGovernor
	}
	return tg.governor.Cancel(msg)
}

func (tg *TaskGroup) cancelChildren(msg string) {
	for _, ch := range tg.children {
		if !ch.awaitable.IsFinished() {
			_ = future.CancelFuture(ch.awaitable, msg)
		}
	}
}

func (tg *TaskGroup) errorOf(ch childHandle) error {
	return ch.errFn()
}

// drainChildren awaits every child in completion order, built on top of
// gather's completion-order iterator rather than a fixed spawn-order
// wait. The moment any child fails (including by being cancelled), it
// cancels every sibling still running — no child may still be pending
// once the scope exits — rather than waiting passively for them to
// finish on their own. If the scope's own governing task is cancelled
// while drainChildren is waiting, it cancels every remaining child and
// returns that Cancelled instead of nil.
//
// The returned childErrs is always built by collectChildErrors, in
// spawn order, once every child has settled — not accumulated as
// completions arrive — so a child whose failure only triggers the
// cascading cancel of a sibling still has that sibling's resulting
// Cancelled folded into the aggregate: nothing a child raises, cancelled
// or not, is ever dropped.
func (tg *TaskGroup) drainChildren(y *future.Yield) (childErrs []error, interrupted *future.Cancelled) {
	awaitables := make([]future.Awaitable, len(tg.children))
	for i, ch := range tg.children {
		awaitables[i] = ch.awaitable
	}
	it := gather.IterDoneAwaitables(tg.l, awaitables...)

	cancelling := false
	for it.Len() > 0 {
		done, cancelled := it.Next(y)
		if cancelled != nil {
			tg.cancelChildren(cancelled.Msg)
			tg.awaitRestUninterruptible(y, it)
			return tg.collectChildErrors(), cancelled
		}

		for _, ch := range tg.children {
			if ch.awaitable == done {
				if tg.errorOf(ch) != nil && !cancelling {
					cancelling = true
					tg.cancelChildren("sibling task failed")
				}
				break
			}
		}
	}
	return tg.collectChildErrors(), nil
}

// awaitRestUninterruptible drains whatever remains in it without itself
// reacting to a further cancellation — used once the scope has already
// committed to unwinding (cancelled by its own governing task), so a
// second inbound cancellation mid-unwind can't re-enter the protocol;
// the scope just keeps making forward progress toward every child
// finishing.
func (tg *TaskGroup) awaitRestUninterruptible(y *future.Yield, it *gather.AwaitableIter) {
	for it.Len() > 0 {
		_, cancelled := it.Next(y)
		if cancelled != nil {
			// The governing task is already being torn down: issue an
			// additional cancel per inbound cancel and keep draining,
			// rather than propagating it further.
			tg.cancelChildren("shutdown in progress")
		}
	}
}

func (tg *TaskGroup) collectChildErrors() []error {
	var errs []error
	for _, ch := range tg.children {
		if err := tg.errorOf(ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Join runs the scope-exit protocol: if bodyErr is set, the group
// cancels every still-running child up front; drainChildren then waits
// out every child in completion order, cancelling any remaining
// siblings the instant one fails (a Cancelled child included), and folds whatever it
// collects together with bodyErr into a single aggregate. If the
// scope's own governing task is cancelled while draining, that
// Cancelled is returned instead.
//
// Join takes the calling Body's *future.Yield directly, so it is safe to
// call from inside a nested scope as well as from Run's own governing
// task — the one thing it must never do is block the loop goroutine
// outside of Await, which routing every wait through
// gather.AwaitableIter guarantees.
func (tg *TaskGroup) Join(y *future.Yield, bodyErr error) error {
	if bodyErr != nil {
		tg.cancelChildren("task group scope body failed")
	}

	childErrs, interrupted := tg.drainChildren(y)
	if interrupted != nil {
		return interrupted
	}

	return combineErrors(bodyErr, childErrs)
}

func combineErrors(bodyErr error, childErrs []error) error {
	all := childErrs
	if bodyErr != nil {
		all = append([]error{bodyErr}, childErrs...)
	}
	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	default:
		return future.NewMultiError("task group scope failed", all...)
	}
}

// Run is the scope entry point: it builds a TaskGroup, runs body with it,
// then executes the full join protocol, driving l until the whole scope
// — body, every spawned child, and unwinding — has settled.
//
// Run is meant for a top-level scope (nothing else is already pumping l
// concurrently from another goroutine). A scope nested inside another
// Task's body should instead construct a TaskGroup directly with
// NewTaskGroup and drive Join with that body's own *future.Yield —
// calling Run itself would mean two goroutines compete to drain the same
// Loop, breaking the one-task-steps-at-a-time guarantee the rest of this
// package relies on.
func Run(ctx context.Context, l *loop.Loop, body func(*TaskGroup) error) error {
	tg := NewTaskGroup(l)

	scopeBody := func(_ context.Context, y *future.Yield) (struct{}, error) {
		bodyErr := body(tg)
		return struct{}{}, tg.Join(y, bodyErr)
	}

	t := future.CreateTask(l, "taskgroup.scope", scopeBody)
	tg.governor = t

	_, err := future.RunUntilComplete[struct{}](ctx, t)
	return err
}
