package transport

import (
	"testing"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
)

func encodedTick(t *testing.T, id uint32, method string) []byte {
	t.Helper()
	req, err := codec.EncodeRequest(id, method, &struct{}{})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	data, err := codec.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}

func TestMulticastChannel_LocalPortAlwaysZero(t *testing.T) {
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(Inbound) {}, func(string, error) {}, "peer-a", "group", time.Minute)
	if c.LocalPort() != 0 {
		t.Fatalf("LocalPort() = %d, want 0", c.LocalPort())
	}
}

func TestMulticastChannel_SendBeforeStartFails(t *testing.T) {
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(Inbound) {}, func(string, error) {}, "peer-a", "group", time.Minute)
	if err := c.Send("tick", &struct{}{}, PeerAddress{}, false, nil); err == nil {
		t.Fatal("expected Send before Start to fail")
	}
}

func TestMulticastChannel_ConsumeDropsOwnSends(t *testing.T) {
	var dispatched int
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(Inbound) { dispatched++ }, func(string, error) {}, "peer-a", "group", time.Minute)

	c.consume("peer-a", encodedTick(t, 1, "tick"), nil)
	if dispatched != 0 {
		t.Fatalf("dispatched %d times for our own origin, want 0", dispatched)
	}
}

func TestMulticastChannel_ConsumeDedupsRepeatedID(t *testing.T) {
	var got []Inbound
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(in Inbound) { got = append(got, in) }, func(string, error) {}, "peer-a", "group", time.Minute)

	data := encodedTick(t, 7, "tick")
	c.consume("peer-b", data, nil)
	c.consume("peer-b", data, nil)

	if len(got) != 1 {
		t.Fatalf("dispatched %d times for a duplicate (origin,id), want 1", len(got))
	}
	if got[0].Method != "tick" || got[0].From.UUID != "peer-b" {
		t.Fatalf("inbound = %+v, want method tick from peer-b", got[0])
	}
}

func TestMulticastChannel_ConsumeDistinctIDsBothDeliver(t *testing.T) {
	var dispatched int
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(Inbound) { dispatched++ }, func(string, error) {}, "peer-a", "group", time.Minute)

	c.consume("peer-b", encodedTick(t, 1, "tick"), nil)
	c.consume("peer-b", encodedTick(t, 2, "tick"), nil)

	if dispatched != 2 {
		t.Fatalf("dispatched %d times for two distinct ids, want 2", dispatched)
	}
}

func TestMulticastChannel_ConsumeIgnoresReceiveError(t *testing.T) {
	var dispatched int
	var failed int
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(Inbound) { dispatched++ }, func(string, error) { failed++ }, "peer-a", "group", time.Minute)

	c.consume("peer-b", nil, errTestRecv)
	if dispatched != 0 || failed != 0 {
		t.Fatalf("dispatched=%d failed=%d on a receive error, want 0,0 (logged only)", dispatched, failed)
	}
}

func TestMulticastChannel_ConsumeReportsDecodeFailure(t *testing.T) {
	var failedCode string
	c := NewMulticastChannel(logging.NewDefaultLogger(), func(Inbound) {}, func(code string, _ error) { failedCode = code }, "peer-a", "group", time.Minute)

	c.consume("peer-b", []byte("not json"), nil)
	if failedCode != "DECODE_FAILED" {
		t.Fatalf("onFail code = %q, want DECODE_FAILED", failedCode)
	}
}

var errTestRecv = &testRecvErr{}

type testRecvErr struct{}

func (*testRecvErr) Error() string { return "simulated receive error" }
