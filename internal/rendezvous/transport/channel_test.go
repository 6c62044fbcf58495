package transport

import (
	"testing"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/clock"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
	"go.uber.org/goleak"
)

func TestReliableChannel_RequestResponseRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log := logging.NewDefaultLogger()

	server := NewReliableChannel(log, clock.New(), func(in Inbound) {
		if in.Respond != nil {
			in.Respond("pong", nil)
		}
	}, func(string, error) {}, 1<<20, 5*time.Second)
	port, err := server.Start(0)
	if err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	defer server.Stop()

	client := NewReliableChannel(log, clock.New(), func(Inbound) {}, func(string, error) {}, 1<<20, 5*time.Second)
	if _, err := client.Start(0); err != nil {
		t.Fatalf("client.Start: %v", err)
	}
	defer client.Stop()

	done := make(chan struct{})
	var gotResult interface{}
	var gotErr error
	err = client.Send("ping", &struct{}{}, PeerAddress{UUID: "server", IP: "127.0.0.1", Port: port}, false, func(result interface{}, respErr error) {
		gotResult, gotErr = result, respErr
		close(done)
	})
	if err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the response")
	}
	if gotErr != nil {
		t.Fatalf("response err = %v, want nil", gotErr)
	}
	if gotResult != "pong" {
		t.Fatalf("response result = %v, want pong", gotResult)
	}
}

func TestReliableChannel_SendToUnreachablePeerFailsFast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log := logging.NewDefaultLogger()
	client := NewReliableChannel(log, clock.New(), func(Inbound) {}, func(string, error) {}, 1<<20, time.Second)
	if _, err := client.Start(0); err != nil {
		t.Fatalf("client.Start: %v", err)
	}
	defer client.Stop()

	done := make(chan error, 1)
	err := client.Send("ping", &struct{}{}, PeerAddress{UUID: "ghost", IP: "127.0.0.1", Port: 1}, false, func(_ interface{}, respErr error) {
		done <- respErr
	})
	if err != nil {
		t.Fatalf("Send to a not-yet-dialed peer should return immediately without error, got %v", err)
	}
	select {
	case respErr := <-done:
		if respErr == nil {
			t.Fatal("expected the response callback to receive the dial error")
		}
	case <-time.After(time.Second):
		t.Fatal("expected responseCb to fire exactly once once the background dial fails")
	}
}

func TestUnreliableChannel_SendDelivers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log := logging.NewDefaultLogger()
	received := make(chan Inbound, 1)
	server := NewUnreliableChannel(log, func(in Inbound) { received <- in }, func(string, error) {})
	port, err := server.Start(0)
	if err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	defer server.Stop()

	client := NewUnreliableChannel(log, func(Inbound) {}, func(string, error) {})
	if _, err := client.Start(0); err != nil {
		t.Fatalf("client.Start: %v", err)
	}
	defer client.Stop()

	if err := client.Send("tick", &struct{}{}, PeerAddress{IP: "127.0.0.1", Port: port}, false, nil); err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	select {
	case in := <-received:
		if in.Method != "tick" {
			t.Fatalf("received method %q, want tick", in.Method)
		}
		if in.ResponseID != 0 {
			t.Fatalf("ResponseID = %d, want 0 for an unreliable push", in.ResponseID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the datagram")
	}
}

func TestReliableChannel_SendRealtimeMarksConnection(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log := logging.NewDefaultLogger()
	server := NewReliableChannel(log, clock.New(), func(in Inbound) {
		if in.Respond != nil {
			in.Respond("pong", nil)
		}
	}, func(string, error) {}, 1<<20, 5*time.Second)
	port, err := server.Start(0)
	if err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	defer server.Stop()

	client := NewReliableChannel(log, clock.New(), func(Inbound) {}, func(string, error) {}, 1<<20, 5*time.Second)
	if _, err := client.Start(0); err != nil {
		t.Fatalf("client.Start: %v", err)
	}
	defer client.Stop()

	peer := PeerAddress{UUID: "server", IP: "127.0.0.1", Port: port}
	done := make(chan struct{})
	if err := client.Send("ping", &struct{}{}, peer, true, func(interface{}, error) { close(done) }); err != nil {
		t.Fatalf("client.Send: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the response")
	}

	client.mu.Lock()
	cs, ok := client.conns[peer.UUID]
	client.mu.Unlock()
	if !ok {
		t.Fatal("expected a cached connState for the peer")
	}
	cs.mu.Lock()
	realtime := cs.realtime
	cs.mu.Unlock()
	if !realtime {
		t.Fatal("expected a realtime Send to mark the cached connection as realtime")
	}
}

func TestUnreliableChannel_LocalPortBeforeStart(t *testing.T) {
	c := NewUnreliableChannel(logging.NewDefaultLogger(), func(Inbound) {}, func(string, error) {})
	if c.LocalPort() != 0 {
		t.Fatalf("LocalPort() before Start = %d, want 0", c.LocalPort())
	}
}
