package future

// cancelAwaitable dispatches cancellation to whichever concrete type a
// is — *Future[S] or *Task[S] — without the caller needing to know S.
// It never applies the self-cancel check: by the time a recursive cancel
// reaches here, the loop goroutine is free (no task can be mid-step
// concurrently with it), so the only entity that could be "cancelling
// itself" is a direct top-level call, already checked by Task.Cancel and
// CancelFuture.
func cancelAwaitable(a Awaitable, c *Cancelled) error {
	return a.cancelRaw(c)
}

// CancelFuture cancels any Awaitable — a plain Future or a Task — with a
// Cancelled carrying msg, dispatching to the appropriate cancellation
// semantics for its concrete kind. It rejects with ErrSelfCancelForbidden
// if a happens to be the Task currently mid-resumption on the calling
// goroutine.
func CancelFuture(a Awaitable, msg string) error {
	if a.stepping() {
		return ErrSelfCancelForbidden
	}
	return cancelAwaitable(a, &Cancelled{Msg: msg})
}

// Shield returns a Future that resolves exactly as inner does, but whose
// own cancellation does not reach inner — the Go equivalent of
// asyncio.shield / the original's aio.future.shield. taskgroup.WaitStarted
// awaits a shielded StartedFuture so that cancelling the waiting scope
// ends the wait without cancelling the child's own StartedFuture.
//
// Shield works because outer is a plain *Future[T]: cancelling it runs
// Future.cancelRaw, which only ever touches outer's own state and never
// references inner.
func Shield[T any](inner ResultFuture[T]) *Future[T] {
	outer := NewFuture[T](inner.ownerLoop(), inner.Label()+".shielded", nil)

	complete := func() {
		if outer.IsFinished() {
			return
		}
		v, err := inner.Result()
		_ = outer.setResult(v, err)
	}

	if inner.IsFinished() {
		complete()
		return outer
	}
	_ = inner.AddCallback(NewCallback(func(Awaitable) { complete() }))
	return outer
}
