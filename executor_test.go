package rendezvous

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestSequentialExecutor_RunsInFIFOOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewSequentialExecutor()
	defer e.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		e.Submit(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the submitted closures to run")
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want sequential 0..4", order)
		}
	}
}

func TestSequentialExecutor_CloseDrainsPendingWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewSequentialExecutor()

	var ran int
	for i := 0; i < 3; i++ {
		e.Submit(func() { ran++ })
	}
	e.Close()

	if ran != 3 {
		t.Fatalf("ran = %d, want 3 closures to drain before Close returns", ran)
	}
}

func TestSequentialExecutor_SubmitAfterCloseDoesNotPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewSequentialExecutor()
	e.Close()

	e.Submit(func() {}) // must not panic on the closed queue channel
}
