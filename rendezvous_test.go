package rendezvous

import (
	"errors"
	"testing"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/systemcmd"
	"github.com/jabolina/rendezvous/internal/rendezvous/transport"
	"go.uber.org/goleak"
)

// inlineExecutor runs every submitted closure synchronously, making
// delegate/completion assertions deterministic without a select/sleep.
type inlineExecutor struct{}

func (inlineExecutor) Submit(fn func()) { fn() }
func (inlineExecutor) Close()           {}

func testConfig(name string) *Config {
	cfg := DefaultConfig(name)
	cfg.SystemPort = 0
	cfg.MulticastPortValue = 0
	return cfg
}

func TestDispatcher_PublishLookupUnpublish(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})

	cmd := NewRequestResponseCommand("chat", ChannelReliable, func() interface{} { return &struct{}{} })
	if err := d.Publish(cmd); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := d.Publish(cmd); !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("duplicate Publish err = %v, want ErrDuplicateCommand", err)
	}
	if err := d.Unpublish(cmd); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
	if err := d.Unpublish(cmd); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("second Unpublish err = %v, want ErrUnknownCommand", err)
	}
}

func TestDispatcher_PublishReservedNameRejected(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})
	cmd := NewRequestResponseCommand("_ghost", ChannelReliable, nil)
	if err := d.Publish(cmd); err == nil {
		t.Fatal("expected publishing a reserved system-prefixed name to fail")
	}
}

func TestDispatcher_SendUnknownChannelClassFails(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})
	cmd := &fakeCommand{name: "ghost", channel: ChannelClass(99)}
	peer := NewLocalPeer("remote", "rendezvous,1", 4000)

	if err := d.Send(cmd, &struct{}{}, peer, nil); err == nil {
		t.Fatal("expected Send with an unrecognized channel class to fail")
	}
}

func TestDispatcher_SubscribeToUnknownPeerFails(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})
	cmd := NewPublishSubscribeCommand("chat", ChannelReliable)
	peer := NewLocalPeer("remote", "rendezvous,1", 4000)

	var resultErr error
	d.Subscribe(cmd, nil, peer, func(interface{}, *Peer) {}, func(err error) { resultErr = err })

	if !errors.Is(resultErr, ErrPeerUnknown) {
		t.Fatalf("Subscribe completion err = %v, want ErrPeerUnknown", resultErr)
	}
}

func TestDispatcher_DisconnectAllWithNoSubscribersCompletesImmediately(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})
	peer := NewLocalPeer("remote", "rendezvous,1", 4000)

	called := false
	d.DisconnectAll(peer, func(err error) {
		called = true
		if err != nil {
			t.Fatalf("completion err = %v, want nil", err)
		}
	})
	if !called {
		t.Fatal("expected DisconnectAll to complete synchronously when nothing is subscribed")
	}
}

func TestDispatcher_LocalPeerReflectsConfig(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})
	local := d.LocalPeer()
	if local.Name != "peer-a" {
		t.Fatalf("LocalPeer().Name = %q, want peer-a", local.Name)
	}
	if local.ProtocolIdentifier != DefaultProtocolIdentifer {
		t.Fatalf("LocalPeer().ProtocolIdentifier = %q, want %q", local.ProtocolIdentifier, DefaultProtocolIdentifer)
	}
}

func TestDispatcher_StartDiscoveryStopDiscoveryDoesNotPanic(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})

	var calls int
	handle := d.StartDiscovery(nil, DiscoveryDelegateFunc(func(DiscoveryChange, *Peer) { calls++ }))
	d.StopDiscovery(handle)

	if calls != 0 {
		t.Fatalf("delegate fired %d times with no peers ever discovered, want 0", calls)
	}
}

// TestDispatcher_StartStopLifecycle exercises the full Start/Stop path
// against real sockets, the way the teacher's own transport tests do.
func TestDispatcher_StartStopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(testConfig("peer-a"), nil, NewSequentialExecutor())
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("second Start (idempotent) err = %v, want nil", err)
	}

	if d.LocalPeer().SystemPort == 0 {
		t.Fatal("expected Start to bind the reliable system channel to a nonzero port")
	}

	d.Stop()
	d.Stop() // idempotent

	time.Sleep(10 * time.Millisecond) // let goroutines wind down before goleak checks
}

// TestDispatcher_InboundSubscribeFromUnresolvedPeerFailsCleanly covers
// spec.md §4.6 step 2 ("Resolve sender peer via source address; if
// absent → PEER_UNKNOWN"): an inbound _sub whose source address
// doesn't resolve to any known peer must answer with a PEER_UNKNOWN
// error instead of panicking on a nil peer inside the subscription
// manager.
func TestDispatcher_InboundSubscribeFromUnresolvedPeerFailsCleanly(t *testing.T) {
	d := NewDispatcher(testConfig("peer-a"), nil, inlineExecutor{})

	var gotResult interface{}
	var gotErr error
	responded := false
	d.dispatchInbound(transport.Inbound{
		Method:     systemcmd.NameSubscribe,
		Params:     []interface{}{"chat", nil, 0},
		ResponseID: 1,
		Respond: func(result interface{}, err error) {
			responded = true
			gotResult, gotErr = result, err
		},
	})

	if !responded {
		t.Fatal("expected Respond to be called for an inbound _sub from an unresolved peer")
	}
	if !errors.Is(gotErr, ErrPeerUnknown) {
		t.Fatalf("Respond err = %v, want ErrPeerUnknown", gotErr)
	}
	if gotResult != nil {
		t.Fatalf("Respond result = %v, want nil", gotResult)
	}
}

type fakeCommand struct {
	name    string
	channel ChannelClass
}

func (c *fakeCommand) Name() string             { return c.name }
func (c *fakeCommand) Pattern() Pattern          { return PatternRequestResponse }
func (c *fakeCommand) Channel() ChannelClass     { return c.channel }
func (c *fakeCommand) IsSystem() bool            { return false }
func (c *fakeCommand) NewArguments() interface{} { return &struct{}{} }
