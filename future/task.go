package future

import (
	"context"
	"fmt"

	"github.com/Tangerg/coop/internal/safe"
	"github.com/Tangerg/coop/loop"
)

// TaskHandle is the non-generic surface of a Task, the type
// GetCurrentTask hands back since the current goroutine's own result type
// isn't known to the code calling it.
type TaskHandle interface {
	Cancel(arg any) error
	Label() string
	IsFinished() bool
}

// Task drives a Body to completion by stepping it from the loop goroutine
// each time the future it's awaiting completes. A Task is itself an
// Awaitable and a ResultFuture[T]: other bodies can Await a Task exactly
// like a plain Future, the same way Python's asyncio.Task is itself an
// asyncio.Future.
type Task[T any] struct {
	loop  *loop.Loop
	fut   *Future[T]
	label string

	phase     State // meaningful only while fut is still pending
	waitingOn Awaitable
	selfCB    *Callback

	resumeCh  chan resumeMsg
	stepCh    chan stepMsg
	disposeCh chan struct{}

	isStepping bool // true only across the resumeCh<-/stepCh<- round trip

	firstStepHandle *loop.Handle
	startedPromise  Promise[struct{}]

	bodyCtx    context.Context
	cancelBody context.CancelFunc
}

// CreateTask constructs a Task bound to l running body, and immediately
// schedules its first step on the loop — matching the original's
// _create_task, which schedules execution before returning the Task to
// the caller, so a Task is never observably "created but not scheduled"
// from outside this package.
func CreateTask[T any](l *loop.Loop, label string, body Body[T]) *Task[T] {
	t := &Task[T]{
		loop:      l,
		fut:       NewFuture[T](l, label, nil),
		label:     label,
		phase:     StateCreated,
		resumeCh:  make(chan resumeMsg),
		stepCh:    make(chan stepMsg),
		disposeCh: make(chan struct{}),
	}
	t.selfCB = NewCallback(t.onWaitingOnDone)
	t.startedPromise = CreatePromise[struct{}](l, label+".started", nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.bodyCtx = contextWithCurrentTask(ctx, t)
	t.cancelBody = cancel

	safe.Go(func() {
		y := &Yield{resumeCh: t.resumeCh, stepCh: t.stepCh}
		select {
		case <-t.resumeCh:
			value, err := runBody(t.bodyCtx, y, body)
			t.stepCh <- stepMsg{done: true, value: value, err: err}
		case <-t.disposeCh:
			// cancelled before the coroutine ever ran a single line of
			// body code; nothing to unwind.
		}
	})

	t.scheduleFirstStep()
	return t
}

// runBody runs body and converts a panic into an ordinary error delivered
// through the normal stepMsg protocol, rather than letting it unwind the
// goroutine — a panic that skipped the stepCh send entirely would leave
// executeStep blocked on <-t.stepCh forever, wedging the whole loop
// goroutine, not just this Task.
func runBody[T any](ctx context.Context, y *Yield, body Body[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("future: task body panicked: %v", r)
		}
	}()
	return body(ctx, y)
}

func (t *Task[T]) scheduleFirstStep() {
	t.phase = StateScheduled
	t.firstStepHandle = t.loop.CallSoon(func() {
		t.executeStep(resumeMsg{kind: resumeNormal})
	}, t.fut.cctx)
}

// StartedFuture resolves once the Task's body has run its first step, or
// once the Task finishes without ever doing so (e.g. cancelled while
// still scheduled). taskgroup.WaitStarted awaits this, shielded, so a
// scope cancellation ends that wait without cancelling this future.
func (t *Task[T]) StartedFuture() *Future[struct{}] { return t.startedPromise.Future() }

// Result returns the Task's outcome, identically to Future[T].Result.
func (t *Task[T]) Result() (T, error) { return t.fut.Result() }

// Exception returns the Task's stored error, identically to
// Future[T].Exception.
func (t *Task[T]) Exception() (error, error) { return t.fut.Exception() }

func (t *Task[T]) Loop() *loop.Loop { return t.loop }
func (t *Task[T]) Label() string    { return t.fut.Label() }

// State reports the Task-specific phase while running, and the
// underlying Future's terminal state once finished.
func (t *Task[T]) State() State {
	if t.fut.IsFinished() {
		return t.fut.State()
	}
	return t.phase
}

func (t *Task[T]) IsFinished() bool  { return t.fut.IsFinished() }
func (t *Task[T]) IsCancelled() bool { return t.fut.IsCancelled() }

func (t *Task[T]) AddCallback(cb *Callback) error { return t.fut.AddCallback(cb) }
func (t *Task[T]) RemoveCallback(cb *Callback)    { t.fut.RemoveCallback(cb) }

func (t *Task[T]) stepping() bool        { return t.isStepping }
func (t *Task[T]) ownerLoop() *loop.Loop { return t.loop }

// Cancel requests cancellation, dispatching on the Task's current phase:
// a created-or-scheduled Task never runs its body at all, a running Task
// has its cancellation recursed into whatever it's currently waiting on,
// and a finished Task rejects outright. It rejects with
// ErrSelfCancelForbidden if called synchronously from within this Task's
// own body (detectable because isStepping is true only across that exact
// round trip, and the loop goroutine — the only other place this method
// runs from — is blocked inside executeStep for the whole of it).
func (t *Task[T]) Cancel(arg any) error {
	if t.isStepping {
		return ErrSelfCancelForbidden
	}
	c, err := coerceCancelArg(arg)
	if err != nil {
		return err
	}
	return t.cancelRaw(c)
}

func (t *Task[T]) cancelRaw(c *Cancelled) error {
	if t.fut.IsFinished() {
		return &FinishedError{Op: "cancel", Label: t.label}
	}

	switch t.phase {
	case StateCreated, StateScheduled:
		if t.firstStepHandle != nil {
			t.firstStepHandle.Cancel()
		}
		close(t.disposeCh)
		err := t.fut.setResult(zeroOf[T](), c)
		t.forceStarted()
		t.cancelBody()
		return err

	case StateRunning:
		w := t.waitingOn
		if w == nil {
			return newRuntimeError("task %q is running with no waiting_on future", t.label)
		}
		if !w.IsFinished() {
			// Recurse: cancelling w wakes this Task through its own
			// callback once w finishes, re-entering the coroutine with
			// the cancellation surfacing as an ordinary error out of
			// Await, the same way cancelling an asyncio.Task recursively
			// cancels whatever future it's currently awaiting.
			return cancelAwaitable(w, c)
		}
		// w already finished by the time cancellation reached us: throw
		// the cancellation directly into the next step instead of
		// resuming normally with w's real (and irrelevant) result.
		w.RemoveCallback(t.selfCB)
		t.waitingOn = nil
		t.loop.CallSoon(func() {
			t.executeStep(resumeMsg{kind: resumeCancel, cancelErr: c})
		}, t.fut.cctx)
		return nil

	default:
		return &FinishedError{Op: "cancel", Label: t.label}
	}
}

func (t *Task[T]) forceStarted() {
	if !t.startedPromise.Future().IsFinished() {
		_ = t.startedPromise.SetResult(struct{}{})
	}
}

// executeStep drives the body goroutine through exactly one
// suspend-or-finish cycle. Always called from the loop goroutine.
func (t *Task[T]) executeStep(resume resumeMsg) {
	if t.fut.IsFinished() {
		return
	}

	prevWaiting := t.waitingOn
	t.waitingOn = nil

	t.isStepping = true
	t.resumeCh <- resume
	msg := <-t.stepCh
	t.isStepping = false

	if t.phase == StateScheduled {
		t.phase = StateRunning
		t.forceStarted()
	}

	if prevWaiting != nil {
		prevWaiting.RemoveCallback(t.selfCB)
	}

	if msg.done {
		_ = t.fut.setResult(coerceValue[T](msg.value), msg.err)
		t.forceStarted()
		t.cancelBody()
		return
	}

	awaited := msg.awaiting
	if awaited == Awaitable(t) {
		t.abandonBody(newRuntimeError("task %q is awaiting itself", t.label))
		return
	}
	if awaited.ownerLoop() != t.loop {
		t.abandonBody(newRuntimeError("task %q awaited a future owned by a different loop", t.label))
		return
	}

	if err := awaited.AddCallback(t.selfCB); err != nil {
		// Awaited future finished in the window between yielding it and
		// subscribing — re-enter immediately rather than wait for a
		// callback that will never fire.
		t.loop.CallSoon(func() { t.executeStep(resumeMsg{kind: resumeNormal}) }, t.fut.cctx)
		return
	}
	t.waitingOn = awaited
}

// abandonBody force-completes the task with err after the body has
// already yielded an await that can never be serviced (self-await, or a
// future owned by a different loop). The body goroutine is currently
// blocked on <-t.resumeCh inside suspend; cancelBody alone only cancels
// bodyCtx, which can't unblock that channel receive. So this throws a
// cancellation into the same suspend point instead, the normal way
// executeStep delivers one, giving the body a chance to unwind and return
// rather than leaking its goroutine forever. Whatever the body does with
// that thrown error, the Task's own result is always err, not the body's.
func (t *Task[T]) abandonBody(err error) {
	t.isStepping = true
	t.resumeCh <- resumeMsg{kind: resumeCancel, cancelErr: &Cancelled{Msg: err.Error(), Cause: err}}
	msg := <-t.stepCh
	t.isStepping = false

	_ = t.fut.setResult(coerceValue[T](msg.value), err)
	t.forceStarted()
	t.cancelBody()
}

func (t *Task[T]) onWaitingOnDone(_ Awaitable) {
	t.executeStep(resumeMsg{kind: resumeNormal})
}

func coerceValue[T any](v any) T {
	if r, ok := v.(T); ok {
		return r
	}
	return zeroOf[T]()
}

// currentTaskKey is the context.Context key a Task's body goroutine
// carries bound to itself, Go's answer to the original's contextvars
// current-task binding.
type currentTaskKey struct{}

func contextWithCurrentTask(ctx context.Context, t TaskHandle) context.Context {
	return context.WithValue(ctx, currentTaskKey{}, t)
}

// GetCurrentTask returns the Task whose body is running on the calling
// goroutine, if ctx was derived from the context that Task's body
// received. Bodies that never threaded ctx through their own Await calls
// or sub-calls won't find themselves here.
func GetCurrentTask(ctx context.Context) (TaskHandle, bool) {
	t, ok := ctx.Value(currentTaskKey{}).(TaskHandle)
	return t, ok
}
