package future

import "context"

// RunUntilComplete drives l until target finishes, then returns its
// result. It is the bridge between the push-based Loop (callbacks run,
// and Run waits for more, until ctx is cancelled) and
// a pull-based caller wanting a single Awaitable's outcome — the Go
// analogue of asyncio.run / the original's run_until_complete.
//
// The caller must not already be running l.Run on another goroutine:
// RunUntilComplete drives the loop itself and returns once target is
// finished or ctx is done, whichever comes first.
func RunUntilComplete[T any](ctx context.Context, target ResultFuture[T]) (T, error) {
	l := target.ownerLoop()

	if target.IsFinished() {
		return target.Result()
	}

	done := make(chan struct{})
	_ = target.AddCallback(NewCallback(func(Awaitable) { close(done) }))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-done:
		case <-runCtx.Done():
		}
		cancel()
	}()

	l.Run(runCtx)

	if !target.IsFinished() {
		var zero T
		return zero, ctx.Err()
	}
	return target.Result()
}
