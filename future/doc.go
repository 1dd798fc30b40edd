/*
Package future implements the Future/Promise/Task state machine and the
cancellation protocol that drive this runtime's coroutines.

A Future[T] is a single-assignment cell: pending, then exactly one of
success(value) or failed(err), never back. Promise[T] is the write-side
token for a Future that isn't backed by a coroutine. Task[T] is a
Future[T] whose completion is driven by stepping a coroutine forward
each time the Future it's currently awaiting completes.

Go has no native suspendable coroutine, so a Task's "coroutine" is
represented as a goroutine paired with a rendezvous channel: the task
body goroutine and the loop goroutine hand off control one at a time,
so exactly one of the two ever runs — see Body, Yield and Await. This
reproduces Python's coroutine.send/coroutine.throw without a language
coroutine construct.

Every exported mutation here is only safe from the owning *loop.Loop's
goroutine; there is no internal locking (see package loop's doc comment
and DESIGN.md for why). Code that needs to complete a Promise from
another goroutine must route through loop.Loop.CallSoonThreadSafe, which
the executor package does on a caller's behalf.
*/
package future
