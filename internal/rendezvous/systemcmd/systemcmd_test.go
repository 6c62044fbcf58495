package systemcmd

import (
	"testing"

	"github.com/jabolina/rendezvous/internal/rendezvous/types"
)

type fakeHeartbeatNotifier struct {
	seen []string
}

func (f *fakeHeartbeatNotifier) NoteHeartbeatReceived(uuid string) {
	f.seen = append(f.seen, uuid)
}

func TestNewHeartbeat_NotifiesOnInboundUUID(t *testing.T) {
	notifier := &fakeHeartbeatNotifier{}
	cmd := NewHeartbeat(notifier)

	if cmd.Name() != NameHeartbeat || !cmd.IsSystem() {
		t.Fatalf("heartbeat command = %+v, want name %q and IsSystem", cmd, NameHeartbeat)
	}

	result, err := cmd.Handler()(&HeartbeatArgs{UUID: "peer-a"}, nil)
	if err != nil {
		t.Fatalf("heartbeat handler: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil heartbeat acknowledgement")
	}
	if len(notifier.seen) != 1 || notifier.seen[0] != "peer-a" {
		t.Fatalf("notifier.seen = %v, want [peer-a]", notifier.seen)
	}
}

type fakeSubscribeHandler struct {
	gotPeer   *types.Peer
	gotName   string
	gotConfig interface{}
	gotPort   int
}

func (f *fakeSubscribeHandler) HandleSubscribeRequest(peer *types.Peer, commandName string, configuration interface{}, port int) (interface{}, error) {
	f.gotPeer, f.gotName, f.gotConfig, f.gotPort = peer, commandName, configuration, port
	return struct{}{}, nil
}

func TestNewSubscribe_DelegatesToManager(t *testing.T) {
	handler := &fakeSubscribeHandler{}
	cmd := NewSubscribe(handler)
	peer := &types.Peer{UUID: "peer-a"}

	_, err := cmd.Handler()(&SubscribeArgs{CommandName: "chat", Port: 5000}, peer)
	if err != nil {
		t.Fatalf("subscribe handler: %v", err)
	}
	if handler.gotName != "chat" || handler.gotPort != 5000 || handler.gotPeer != peer {
		t.Fatalf("manager received (%v, %q, %d), want (peer, chat, 5000)", handler.gotPeer, handler.gotName, handler.gotPort)
	}
}

type fakeUnsubscribeHandler struct {
	gotNames []string
}

func (f *fakeUnsubscribeHandler) HandleUnsubscribeRequest(peer *types.Peer, names []string) (interface{}, error) {
	f.gotNames = names
	return struct{}{}, nil
}

func TestNewUnsubscribe_DelegatesToManager(t *testing.T) {
	handler := &fakeUnsubscribeHandler{}
	cmd := NewUnsubscribe(handler)

	_, err := cmd.Handler()(&UnsubscribeArgs{Commands: []string{"chat", "presence"}}, nil)
	if err != nil {
		t.Fatalf("unsubscribe handler: %v", err)
	}
	if len(handler.gotNames) != 2 {
		t.Fatalf("gotNames = %v, want 2 entries", handler.gotNames)
	}
}

type fakeDisconnectHandler struct {
	called bool
	names  []string
}

func (f *fakeDisconnectHandler) HandleDisconnectPush(peer *types.Peer, names []string) {
	f.called = true
	f.names = names
}

func TestNewDisconnect_DelegatesToManager(t *testing.T) {
	handler := &fakeDisconnectHandler{}
	cmd := NewDisconnect(handler)

	result, err := cmd.Handler()(&DisconnectArgs{Commands: []string{"chat"}}, nil)
	if err != nil {
		t.Fatalf("disconnect handler: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil disconnect acknowledgement")
	}
	if !handler.called || len(handler.names) != 1 {
		t.Fatal("expected HandleDisconnectPush to be invoked with the command list")
	}
}

func TestNewCapability_ReturnsPublishedNames(t *testing.T) {
	cmd := NewCapability(func() []string { return []string{"chat", "presence"} })
	result, err := cmd.Handler()(&CapabilityArgs{}, nil)
	if err != nil {
		t.Fatalf("capability handler: %v", err)
	}
	capResult, ok := result.(*CapabilityResult)
	if !ok || len(capResult.Commands) != 2 {
		t.Fatalf("result = %#v, want *CapabilityResult with 2 commands", result)
	}
}

func TestNewAnnounce_IsSystemReservedName(t *testing.T) {
	cmd := NewAnnounce(func() interface{} { return &struct{}{} })
	if cmd.Name() != NameAnnounce {
		t.Fatalf("Name() = %q, want %q", cmd.Name(), NameAnnounce)
	}
	if !cmd.IsSystem() {
		t.Fatal("_ann must report IsSystem() == true")
	}
	if cmd.Handler() != nil {
		t.Fatal("expected no handler installed until a consumer calls SetHandler")
	}
}
