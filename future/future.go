package future

import (
	"log/slog"
	"runtime"

	"go.uber.org/atomic"

	"github.com/Tangerg/coop/loop"
)

// State is the lifecycle tag of a Future or Task. A plain Future only
// ever occupies StatePending, then StateSuccess or StateFailed. A Task
// additionally passes through StateCreated and StateScheduled and
// StateRunning before reaching a terminal state.
type State int32

const (
	StateCreated State = iota
	StateScheduled
	StateRunning
	StatePending
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StatePending:
		return "pending"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callback is a reference-identity subscription to a Future's completion.
// Go function values can't be compared for equality, so identity here is
// the pointer to the Callback itself: construct one with NewCallback and
// reuse the same pointer across AddCallback/RemoveCallback calls to
// dedupe and unsubscribe the same subscription.
type Callback struct {
	fn func(Awaitable)
}

// NewCallback wraps fn as an identity-comparable callback.
func NewCallback(fn func(Awaitable)) *Callback { return &Callback{fn: fn} }

// Awaitable is the type-erased surface every Future[T] (and every Task[T],
// which wraps one) exposes, so a Task can hold a waiting-on edge to
// a future of a different result type. The unexported methods seal the
// interface to this package: only Future and Task are meant to implement
// it.
type Awaitable interface {
	State() State
	IsFinished() bool
	IsCancelled() bool
	AddCallback(cb *Callback) error
	RemoveCallback(cb *Callback)
	Label() string

	cancelRaw(c *Cancelled) error
	stepping() bool
	ownerLoop() *loop.Loop
}

// Future is a single-assignment cell holding eventually a value of type T
// or an error (which may be a *Cancelled).
type Future[T any] struct {
	loop  *loop.Loop
	label string
	cctx  loop.CallContext

	state State

	value T
	err   error

	callbacks []*Callback
	scheduled map[*Callback]*loop.Handle

	// diagState mirrors state and diagRetrieved tracks whether a failed
	// Future's error has been read, both for the GC cleanup registered in
	// NewFuture. They're their own allocation rather than plain fields so
	// diagnosticSnapshot's caller can hold a reference to them without
	// that reference keeping this Future itself reachable —
	// runtime.AddCleanup never fires if its argument pins the target
	// object.
	diagState     *atomic.Int32
	diagRetrieved *atomic.Bool
}

// NewFuture constructs a pending Future bound to l. extra is merged into
// the opaque tracing context every scheduled callback carries.
func NewFuture[T any](l *loop.Loop, label string, extra map[string]any) *Future[T] {
	cctx := loop.CallContext{}
	for k, v := range extra {
		cctx[k] = v
	}
	cctx["future_label"] = label
	f := &Future[T]{
		loop:          l,
		label:         label,
		cctx:          cctx,
		state:         StatePending,
		scheduled:     map[*Callback]*loop.Handle{},
		diagState:     atomic.NewInt32(int32(StatePending)),
		diagRetrieved: atomic.NewBool(false),
	}
	cctx["future"] = f
	runtime.AddCleanup(f, warnIfUnfinished, f.diagnosticSnapshot())
	return f
}

type diagnostic struct {
	label     string
	logger    *slog.Logger
	state     *atomic.Int32
	retrieved *atomic.Bool
}

func (f *Future[T]) diagnosticSnapshot() *diagnostic {
	return &diagnostic{
		label:     f.label,
		logger:    f.loop.Logger(),
		state:     f.diagState,
		retrieved: f.diagRetrieved,
	}
}

// warnIfUnfinished logs when a Future is garbage collected while still
// pending, or failed with its exception never retrieved — never for one
// that finished successfully. Go has no deterministic destructor:
// runtime.AddCleanup runs at some point after the Future becomes
// unreachable, if ever before process exit, so this must be read as "may
// warn", not "will warn" (see DESIGN.md's Open Question on
// finalizer-based diagnostics).
func warnIfUnfinished(d *diagnostic) {
	switch State(d.state.Load()) {
	case StatePending:
		d.logger.Warn("future garbage collected while still pending", "label", d.label)
	case StateFailed:
		if !d.retrieved.Load() {
			d.logger.Warn("failed future garbage collected with its exception never retrieved", "label", d.label)
		}
	}
}

// Loop returns the loop this Future is bound to.
func (f *Future[T]) Loop() *loop.Loop { return f.loop }

// Label returns the human-readable label given at construction, if any.
func (f *Future[T]) Label() string { return f.label }

// State returns the current lifecycle state.
func (f *Future[T]) State() State { return f.state }

// IsFinished reports whether the Future reached a terminal state.
func (f *Future[T]) IsFinished() bool {
	return f.state == StateSuccess || f.state == StateFailed
}

// IsCancelled reports whether the Future finished as failed(Cancelled).
func (f *Future[T]) IsCancelled() bool {
	if f.state != StateFailed {
		return false
	}
	_, ok := f.err.(*Cancelled)
	return ok
}

// Result returns the value if the Future succeeded, re-raises the stored
// error if it failed, and returns ErrNotReady while pending.
func (f *Future[T]) Result() (T, error) {
	var zero T
	switch f.state {
	case StateSuccess:
		return f.value, nil
	case StateFailed:
		f.diagRetrieved.Store(true)
		return zero, f.err
	default:
		return zero, ErrNotReady
	}
}

// Exception returns the stored error (nil on success), or ErrNotReady
// while pending. Marks the exception retrieved so the destroyed-but-
// unretrieved diagnostic doesn't fire.
func (f *Future[T]) Exception() (error, error) {
	switch f.state {
	case StateSuccess:
		return nil, nil
	case StateFailed:
		f.diagRetrieved.Store(true)
		return f.err, nil
	default:
		return nil, ErrNotReady
	}
}

// AddCallback registers cb to run, via the loop, once this Future
// completes. Duplicate registration (same *Callback) is a no-op. Fails
// with FinishedError on an already-terminal Future — unlike Python's
// asyncio.Future.add_done_callback, which still schedules the callback
// via call_soon even when the future is already done. Here the caller
// must branch on IsFinished first and invoke cb directly in that case,
// so completion ordering at the boundary stays explicit rather than
// implicit.
func (f *Future[T]) AddCallback(cb *Callback) error {
	if f.IsFinished() {
		return &FinishedError{Op: "add_callback", Label: f.label}
	}
	for _, existing := range f.callbacks {
		if existing == cb {
			return nil
		}
	}
	f.callbacks = append(f.callbacks, cb)
	return nil
}

// RemoveCallback unsubscribes cb. Idempotent: removing an absent or
// already-fired callback is a no-op. If cb's notification is still
// sitting on the loop's ready queue, that submission is cancelled.
func (f *Future[T]) RemoveCallback(cb *Callback) {
	if !f.IsFinished() {
		for i, existing := range f.callbacks {
			if existing == cb {
				f.callbacks = append(f.callbacks[:i], f.callbacks[i+1:]...)
				return
			}
		}
		return
	}
	if h, ok := f.scheduled[cb]; ok {
		h.Cancel()
		delete(f.scheduled, cb)
	}
}

// setResult is the single completion path: capture the callback set,
// flip the state, then schedule each callback on the loop in FIFO order,
// mirroring how asyncio.Future moves from pending to a terminal state
// and drains its done-callback list.
func (f *Future[T]) setResult(value T, err error) error {
	if f.IsFinished() {
		return &FinishedError{Op: "set_result", Label: f.label}
	}
	f.value = value
	f.err = err
	if err != nil {
		f.state = StateFailed
	} else {
		f.state = StateSuccess
	}
	f.diagState.Store(int32(f.state))
	pending := f.callbacks
	f.callbacks = nil
	for _, cb := range pending {
		cb := cb
		h := f.loop.CallSoon(func() { cb.fn(f) }, f.cctx)
		f.scheduled[cb] = h
	}
	return nil
}

func (f *Future[T]) cancel(arg any) error {
	c, err := coerceCancelArg(arg)
	if err != nil {
		return err
	}
	return f.setResult(zeroOf[T](), c)
}

// cancelRaw is the Awaitable-interface cancellation entry point used by
// CancelFuture and by a Task recursively cancelling its waiting_on edge. A
// plain Future has no inner work to recurse into, so it's equivalent to
// cancel.
func (f *Future[T]) cancelRaw(c *Cancelled) error {
	return f.setResult(zeroOf[T](), c)
}

// stepping is always false for a plain Future: only a Task's coroutine can
// be "mid-resumption".
func (f *Future[T]) stepping() bool { return false }

func (f *Future[T]) ownerLoop() *loop.Loop { return f.loop }

func zeroOf[T any]() T {
	var z T
	return z
}

// Promise is the write-capability handle over a Future[T]. Constructing
// one over a Task is forbidden: Tasks complete themselves by running
// their coroutine to completion, never by an external SetResult.
type Promise[T any] struct {
	fut *Future[T]
}

// CreatePromise allocates a fresh pending Future[T] and the Promise that
// owns its write capability.
func CreatePromise[T any](l *loop.Loop, label string, extra map[string]any) Promise[T] {
	return Promise[T]{fut: NewFuture[T](l, label, extra)}
}

// Future returns the Promise's backing Future. Every holder shares the
// same instance; the Future outlives the Promise if awaiters still hold
// a reference to it.
func (p Promise[T]) Future() *Future[T] { return p.fut }

// SetResult completes the Future with a value. Fails with FinishedError
// if the Future already reached a terminal state.
func (p Promise[T]) SetResult(v T) error {
	return p.fut.setResult(v, nil)
}

// SetException completes the Future with an error. Refuses a *Cancelled:
// callers must express cancellation via Cancel, never SetException, so
// that intent is unambiguous at the type level.
func (p Promise[T]) SetException(err error) error {
	if _, ok := err.(*Cancelled); ok {
		return newRuntimeError("use Cancel instead of SetException for a *Cancelled")
	}
	return p.fut.setResult(zeroOf[T](), err)
}

// Cancel completes the Future as failed(Cancelled). arg may be nil (fresh
// Cancelled), a string (Cancelled with that message), or an existing
// *Cancelled (used as-is, preserving identity for callers that compare
// cancellation causes by pointer).
func (p Promise[T]) Cancel(arg any) error {
	return p.fut.cancel(arg)
}
