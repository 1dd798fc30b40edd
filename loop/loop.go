package loop

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"

	"github.com/Tangerg/coop/internal/safe"
)

// Loop is a minimal single-threaded, cooperative callback driver: a FIFO
// of ready callbacks, run one at a time to completion, never re-entrantly.
//
// Zero value is not usable; construct with New.
type Loop struct {
	mu    sync.Mutex
	ready deque.Deque[*Handle]
	wake  chan struct{}

	log     *slog.Logger
	metrics *metrics
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithLogger overrides the slog.Logger used for recovered panics and
// destroyed-but-unfinished-future diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// WithMetrics registers Prometheus gauges/counters tracking queue depth
// and callbacks executed. Disabled unless explicitly requested.
func WithMetrics(namespace string) Option {
	return func(lp *Loop) { lp.metrics = newMetrics(namespace) }
}

// New constructs a ready-to-run Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CallSoon enqueues fn to run on a later tick of the loop and returns a
// Handle that can cancel it before it runs. Conventionally called from
// code already running on the loop goroutine (future callbacks, the next
// step of a Task); see CallSoonThreadSafe for the cross-thread case.
func (l *Loop) CallSoon(fn func(), cctx CallContext) *Handle {
	h := &Handle{fn: fn, ctx: cctx}
	l.push(h)
	return h
}

// CallSoonThreadSafe is the only legal way for a goroutine that isn't the
// loop goroutine to submit work to the loop. Safe to call concurrently
// with the loop itself and with other callers of CallSoonThreadSafe.
func (l *Loop) CallSoonThreadSafe(fn func(), cctx CallContext) *Handle {
	return l.CallSoon(fn, cctx)
}

func (l *Loop) push(h *Handle) {
	l.mu.Lock()
	l.ready.PushBack(h)
	depth := l.ready.Len()
	l.mu.Unlock()
	if l.metrics != nil {
		l.metrics.queueDepth.Set(float64(depth))
	}
	l.notify()
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) pop() (*Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready.Len() == 0 {
		return nil, false
	}
	h := l.ready.PopFront()
	if l.metrics != nil {
		l.metrics.queueDepth.Set(float64(l.ready.Len()))
	}
	return h, true
}

// Run drains the ready queue to quiescence, then blocks for more work
// until ctx is cancelled. It runs on the calling goroutine: that goroutine
// IS the loop goroutine for the lifetime of the call.
func (l *Loop) Run(ctx context.Context) {
	for {
		h, ok := l.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}
		l.runOne(h)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Drain runs ready callbacks until the queue is empty, then returns
// without blocking for more. Tests use this to advance the loop one tick
// at a time.
func (l *Loop) Drain() {
	for {
		h, ok := l.pop()
		if !ok {
			return
		}
		l.runOne(h)
	}
}

func (l *Loop) runOne(h *Handle) {
	if h.cancelledP() {
		return
	}
	wrapped := safe.WithRecover(h.run, func(err error) {
		l.log.Warn("recovered panic in loop callback", "error", err, "callback_context", h.ctx)
	})
	wrapped()
	if l.metrics != nil {
		l.metrics.executed.Inc()
	}
}

// Logger returns the slog.Logger this loop diagnoses with.
func (l *Loop) Logger() *slog.Logger { return l.log }
