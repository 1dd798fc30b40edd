package loop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCallSoonFIFOOrdering(t *testing.T) {
	l := New()
	var order []int
	var mu sync.Mutex
	for i := range 5 {
		i := i
		l.CallSoon(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, nil)
	}
	l.Drain()

	if len(order) != 5 {
		t.Fatalf("expected 5 callbacks to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestCallbackEnqueuedDuringAnotherRunsLater(t *testing.T) {
	l := New()
	var order []string
	l.CallSoon(func() {
		order = append(order, "a")
		l.CallSoon(func() { order = append(order, "b") }, nil)
	}, nil)
	l.CallSoon(func() { order = append(order, "c") }, nil)
	l.Drain()

	want := []string{"a", "c", "b"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestHandleCancelPreventsExecution(t *testing.T) {
	l := New()
	ran := false
	h := l.CallSoon(func() { ran = true }, nil)
	h.Cancel()
	l.Drain()

	if ran {
		t.Fatal("cancelled handle must not run")
	}
	if h.Executed() {
		t.Fatal("cancelled handle must never report Executed")
	}
}

func TestHandleExecutedReflectsRun(t *testing.T) {
	l := New()
	h := l.CallSoon(func() {}, nil)
	if h.Executed() {
		t.Fatal("handle must not be executed before drain")
	}
	l.Drain()
	if !h.Executed() {
		t.Fatal("handle must be executed after drain")
	}
}

func TestCallSoonThreadSafeWakesRunningLoop(t *testing.T) {
	l := New()
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		l.Run(ctx)
		close(done)
	}()

	result := make(chan int, 1)
	go func() {
		l.CallSoonThreadSafe(func() { result <- 42 }, nil)
	}()

	select {
	case v := <-result:
		if v != 42 {
			t.Fatalf("unexpected result %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for thread-safe callback to run")
	}
	cancel()
	<-done
}

func TestPanicInCallbackIsRecovered(t *testing.T) {
	l := New()
	ran := false
	l.CallSoon(func() { panic("boom") }, nil)
	l.CallSoon(func() { ran = true }, nil)
	l.Drain()

	if !ran {
		t.Fatal("a panic in one callback must not stop the loop from running the next")
	}
}
