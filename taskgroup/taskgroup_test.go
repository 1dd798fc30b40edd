package taskgroup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tangerg/coop/future"
	"github.com/Tangerg/coop/loop"
	"github.com/Tangerg/coop/taskgroup"
)

// Every assertion below runs on the test goroutine, after l.Drain(), never
// inside a Body closure — a Body runs on its own goroutine (see
// future/coroutine.go), where calling require/assert (which can invoke
// t.FailNow) is unsafe.

func TestRunAllChildrenSucceed(t *testing.T) {
	l := loop.New()

	err := taskgroup.Run(context.Background(), l, func(tg *taskgroup.TaskGroup) error {
		taskgroup.Spawn(tg, "a", func(_ context.Context, _ *future.Yield) (int, error) {
			return 1, nil
		})
		taskgroup.Spawn(tg, "b", func(_ context.Context, _ *future.Yield) (int, error) {
			return 2, nil
		})
		return nil
	})

	require.NoError(t, err)
}

func TestRunChildFailureCancelsSiblingsAndAggregates(t *testing.T) {
	l := loop.New()
	gate := future.CreatePromise[int](l, "gate", nil)
	var siblingErr error

	err := taskgroup.Run(context.Background(), l, func(tg *taskgroup.TaskGroup) error {
		taskgroup.Spawn(tg, "failer", func(_ context.Context, _ *future.Yield) (int, error) {
			return 0, assert.AnError
		})
		taskgroup.Spawn(tg, "sleeper", func(_ context.Context, y *future.Yield) (int, error) {
			_, err := future.Await[int](y, gate.Future())
			siblingErr = err
			return 0, err
		})
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	require.Error(t, siblingErr)
	_, isCancelled := siblingErr.(*future.Cancelled)
	assert.True(t, isCancelled, "sibling must observe cancellation once the scope unwinds, got %v", siblingErr)
}

func TestRunBodyErrorAggregatesWithChildFailures(t *testing.T) {
	l := loop.New()
	gate := future.CreatePromise[int](l, "gate", nil)
	bodyErr := assert.AnError

	err := taskgroup.Run(context.Background(), l, func(tg *taskgroup.TaskGroup) error {
		taskgroup.Spawn(tg, "slow", func(_ context.Context, y *future.Yield) (int, error) {
			_, err := future.Await[int](y, gate.Future())
			return 0, err
		})
		return bodyErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, bodyErr)

	var multi *future.MultiError
	require.ErrorAs(t, err, &multi, "body error and the cancelled child must both surface, not just the body error")
	var childCancelled *future.Cancelled
	assert.ErrorAs(t, err, &childCancelled, "the child's Cancelled must still appear in the aggregate, not be silently dropped")
}

// TestWaitStartedResolvesBeforeBodyCompletes drives a scope by hand
// (instead of through Run) so the test can Drain one step at a time and
// observe that WaitStarted unblocks as soon as the child's first step
// has run, not only once the whole scope has joined.
func TestWaitStartedResolvesBeforeBodyCompletes(t *testing.T) {
	l := loop.New()
	gate := future.CreatePromise[int](l, "gate", nil)
	var waitStartedErr error
	var waitStartedCalled bool

	tg := taskgroup.NewTaskGroup(l)
	scope := future.CreateTask(l, "scope", func(_ context.Context, y *future.Yield) (struct{}, error) {
		child := taskgroup.Spawn(tg, "child", func(_ context.Context, y2 *future.Yield) (int, error) {
			_, err := future.Await[int](y2, gate.Future())
			return 0, err
		})
		waitStartedErr = taskgroup.WaitStarted(y, child)
		waitStartedCalled = true
		return struct{}{}, tg.Join(y, nil)
	})

	l.Drain()
	require.True(t, waitStartedCalled)
	assert.NoError(t, waitStartedErr)
	require.False(t, scope.IsFinished(), "scope must still be joining on its still-running child")

	_ = gate.SetResult(1)
	l.Drain()
	require.True(t, scope.IsFinished())
	assert.NoError(t, func() error { _, err := scope.Result(); return err }())
}

// TestTaskGroupCancelPropagatesToChildren drives the scope by hand so the
// test can call TaskGroup.Cancel mid-join and observe the still-running
// child get cancelled as part of unwinding.
func TestTaskGroupCancelPropagatesToChildren(t *testing.T) {
	l := loop.New()
	gate := future.CreatePromise[int](l, "gate", nil)
	var childErr error
	var tgRef *taskgroup.TaskGroup
	spawned := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- taskgroup.Run(context.Background(), l, func(tg *taskgroup.TaskGroup) error {
			tgRef = tg
			taskgroup.Spawn(tg, "sleeper", func(_ context.Context, y2 *future.Yield) (int, error) {
				_, err := future.Await[int](y2, gate.Future())
				childErr = err
				return 0, err
			})
			close(spawned)
			return nil
		})
	}()

	<-spawned
	// tg.Cancel mutates loop-confined state, so it must be requested the
	// same way any other cross-goroutine caller reaches the loop: via
	// CallSoonThreadSafe, never by calling it directly off-loop.
	l.CallSoonThreadSafe(func() {
		_ = tgRef.Cancel("shutdown")
	}, nil)

	err := <-done
	require.Error(t, err)
	_, isCancelled := err.(*future.Cancelled)
	assert.True(t, isCancelled, "scope must surface the cancellation that interrupted its join, got %v", err)
	require.Error(t, childErr)
	_, childIsCancelled := childErr.(*future.Cancelled)
	assert.True(t, childIsCancelled)
}
