package future

import (
	"testing"

	"github.com/Tangerg/coop/loop"
)

func TestPromiseSetResultCompletesFuture(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)

	if err := p.SetResult(7); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	if p.Future().State() != StateSuccess {
		t.Fatalf("state = %v, want success", p.Future().State())
	}
	v, err := p.Future().Result()
	if err != nil || v != 7 {
		t.Fatalf("Result() = %v, %v; want 7, nil", v, err)
	}
}

func TestSetResultTwiceReturnsFinishedError(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)
	_ = p.SetResult(1)

	err := p.SetResult(2)
	if _, ok := err.(*FinishedError); !ok {
		t.Fatalf("second SetResult = %v, want *FinishedError", err)
	}
}

func TestResultOnPendingFutureReturnsErrNotReady(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)
	_, err := p.Future().Result()
	if err != ErrNotReady {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestAddCallbackOnFinishedFutureFails(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)
	_ = p.SetResult(1)

	err := p.Future().AddCallback(NewCallback(func(Awaitable) {}))
	if _, ok := err.(*FinishedError); !ok {
		t.Fatalf("AddCallback on finished = %v, want *FinishedError", err)
	}
}

func TestCallbackFiresOnLoopAfterSetResult(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)
	fired := false
	_ = p.Future().AddCallback(NewCallback(func(Awaitable) { fired = true }))

	_ = p.SetResult(1)
	if fired {
		t.Fatal("callback must not fire synchronously inside setResult")
	}
	l.Drain()
	if !fired {
		t.Fatal("callback must fire once the loop drains")
	}
}

func TestPreCompletedFutureSkipsCallbackAndReturnsImmediately(t *testing.T) {
	l := loop.New()
	p := CreatePromise[string](l, "t", nil)
	_ = p.SetResult("done")

	v, err := p.Future().Result()
	if err != nil || v != "done" {
		t.Fatalf("Result() = %v, %v", v, err)
	}
}

func TestCancelProducesCancelledError(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)
	_ = p.Cancel("stop")
	l.Drain()

	if !p.Future().IsCancelled() {
		t.Fatal("future must report IsCancelled after Cancel")
	}
	_, err := p.Future().Result()
	c, ok := err.(*Cancelled)
	if !ok || c.Msg != "stop" {
		t.Fatalf("err = %v, want *Cancelled{Msg: stop}", err)
	}
}

func TestSetExceptionRejectsCancelled(t *testing.T) {
	l := loop.New()
	p := CreatePromise[int](l, "t", nil)
	err := p.SetException(&Cancelled{Msg: "x"})
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("SetException(Cancelled) = %v, want *RuntimeError", err)
	}
}

func TestMultiErrorFlattensNestedMultiErrors(t *testing.T) {
	inner := NewMultiError("inner", errA, errB)
	outer := NewMultiError("outer", inner, errC)

	got := outer.Errors()
	if len(got) != 3 {
		t.Fatalf("flattened errors = %v, want 3 entries", got)
	}
}

var (
	errA = &RuntimeError{Msg: "a"}
	errB = &RuntimeError{Msg: "b"}
	errC = &RuntimeError{Msg: "c"}
)
