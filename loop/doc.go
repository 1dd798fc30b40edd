/*
Package loop provides the minimal single-threaded callback driver that the
future, gather, taskgroup and executor packages are built against.

It deliberately does not implement a reactor, a poller, or a timer wheel:
those are out of scope for this runtime's core. What it does provide is
the narrow contract those packages actually depend on:

  - a FIFO queue of ready callbacks, run one at a time, to completion,
    never re-entrantly,
  - CallSoon for same-goroutine scheduling and CallSoonThreadSafe as the
    only sanctioned way for another goroutine to reach into the loop,
  - a Handle for every submission, so cancellation can revoke work that
    hasn't run yet.

A real deployment embeds this loop inside a bigger reactor that also
polls sockets and fires timers; this package is the part a coroutine
runtime core needs in order to be testable on its own.
*/
package loop
