package transport

import (
	"testing"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/clock"
)

func TestPendingTable_CompleteResolvesCallback(t *testing.T) {
	clk := clock.NewMock()
	table := newPendingTable(clk, time.Second)

	id := table.nextRequestID()
	var gotResult interface{}
	var gotErr error
	done := make(chan struct{})
	table.register("peer-a", id, func(result interface{}, err error) {
		gotResult, gotErr = result, err
		close(done)
	})

	if ok := table.complete("peer-a", id, "ok", nil); !ok {
		t.Fatal("expected complete to find the registered entry")
	}
	<-done
	if gotErr != nil || gotResult != "ok" {
		t.Fatalf("callback got (%v, %v), want (ok, nil)", gotResult, gotErr)
	}
}

func TestPendingTable_CompleteUnknownReturnsFalse(t *testing.T) {
	clk := clock.NewMock()
	table := newPendingTable(clk, time.Second)
	if table.complete("peer-a", 99, nil, nil) {
		t.Fatal("expected complete to report false for an unregistered id")
	}
}

func TestPendingTable_TimeoutFiresCallback(t *testing.T) {
	clk := clock.NewMock()
	table := newPendingTable(clk, time.Second)

	id := table.nextRequestID()
	done := make(chan error, 1)
	table.register("peer-a", id, func(result interface{}, err error) { done <- err })

	clk.Add(2 * time.Second)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a timeout error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the pending callback to fire")
	}
}

func TestPendingTable_FailAllForPeer(t *testing.T) {
	clk := clock.NewMock()
	table := newPendingTable(clk, time.Second)

	var calls int
	cb := func(result interface{}, err error) { calls++ }
	table.register("peer-a", table.nextRequestID(), cb)
	table.register("peer-a", table.nextRequestID(), cb)
	table.register("peer-b", table.nextRequestID(), cb)

	n := table.failAllForPeer("peer-a", nil)
	if n != 2 {
		t.Fatalf("failAllForPeer failed %d entries, want 2", n)
	}
	if calls != 2 {
		t.Fatalf("callbacks fired %d times, want 2", calls)
	}
}

func TestPendingTable_NextRequestIDNeverZero(t *testing.T) {
	clk := clock.NewMock()
	table := &pendingTable{entries: map[pendingKey]*pendingEntry{}, clk: clk, nextID: ^uint32(0)}
	if id := table.nextRequestID(); id == 0 {
		t.Fatal("nextRequestID must never return 0 — reserved for notifications")
	}
}
