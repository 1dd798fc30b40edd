package loop

import "go.uber.org/atomic"

// CallContext carries opaque tracing/logging metadata alongside a
// scheduled callback. Every Future carries one of these maps, and the
// loop honors it by attaching it to the log record emitted if the
// callback panics.
type CallContext map[string]any

// Handle is the revocable receipt returned by CallSoon/CallSoonThreadSafe.
// Cancel is idempotent; Executed reflects whether the callback actually
// ran (it never becomes true for a cancelled handle).
type Handle struct {
	fn        func()
	ctx       CallContext
	cancelled atomic.Bool
	executed  atomic.Bool
}

// Cancel revokes the handle. If the callback already ran, this is a no-op.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// Executed reports whether the callback has run.
func (h *Handle) Executed() bool {
	return h.executed.Load()
}

func (h *Handle) cancelledP() bool {
	return h.cancelled.Load()
}

func (h *Handle) run() {
	h.fn()
	h.executed.Store(true)
}
