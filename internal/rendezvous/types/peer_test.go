package types

import (
	"net"
	"testing"
)

func TestNewLocalPeer_SeedsSystemPort(t *testing.T) {
	p := NewLocalPeer("alice", "rendezvous,1", 4000)
	port, ok := p.PortForCommandName(SystemCommandName)
	if !ok || port != 4000 {
		t.Fatalf("PortForCommandName(system) = (%d, %v), want (4000, true)", port, ok)
	}
}

func TestPeer_SetSystemPort_UpdatesBoth(t *testing.T) {
	p := NewLocalPeer("bob", "rendezvous,1", 0)
	p.SetSystemPort(5555)
	if p.SystemPort != 5555 {
		t.Fatalf("SystemPort = %d, want 5555", p.SystemPort)
	}
	port, ok := p.PortForCommandName(SystemCommandName)
	if !ok || port != 5555 {
		t.Fatalf("PortForCommandName(system) = (%d, %v), want (5555, true)", port, ok)
	}
}

func TestPeer_HasAddress(t *testing.T) {
	p := &Peer{Addresses: []net.IP{net.ParseIP("10.0.0.1")}}
	if !p.HasAddress(net.ParseIP("10.0.0.1")) {
		t.Fatal("expected HasAddress to match 10.0.0.1")
	}
	if p.HasAddress(net.ParseIP("10.0.0.2")) {
		t.Fatal("expected HasAddress to reject 10.0.0.2")
	}
}

func TestPeer_SetCapabilities_ReplacesSet(t *testing.T) {
	p := NewLocalPeer("carol", "rendezvous,1", 0)
	p.SetCapabilities([]string{"chat", "presence"})
	if !p.HasCapability("chat") || !p.HasCapability("presence") {
		t.Fatalf("capabilities = %v, want chat+presence", p.CapabilityList())
	}
	p.SetCapabilities([]string{"chat"})
	if p.HasCapability("presence") {
		t.Fatal("expected presence to be dropped after SetCapabilities")
	}
}

func TestPeer_CapabilitiesSuperset(t *testing.T) {
	p := NewLocalPeer("dan", "rendezvous,1", 0)
	p.SetCapabilities([]string{"chat", "presence", "files"})
	if !p.CapabilitiesSuperset([]string{"chat", "files"}) {
		t.Fatal("expected superset to hold")
	}
	if p.CapabilitiesSuperset([]string{"video"}) {
		t.Fatal("expected superset to fail for an uncapable command")
	}
	if !p.CapabilitiesSuperset(nil) {
		t.Fatal("every peer is a superset of the empty requirement set")
	}
}

func TestPeer_EncodeDecodeTXT_RoundTrip(t *testing.T) {
	p := NewLocalPeer("erin", "rendezvous,1", 9000)
	p.SetCapabilities([]string{"chat"})
	p.SetPort(9100, "chat")

	entries := p.EncodeTXT()

	out := &Peer{}
	if err := out.UpdateFromTXT(entries); err != nil {
		t.Fatalf("UpdateFromTXT: %v", err)
	}
	if out.UUID != p.UUID {
		t.Fatalf("UUID = %q, want %q", out.UUID, p.UUID)
	}
	if out.SystemPort != 9000 {
		t.Fatalf("SystemPort = %d, want 9000", out.SystemPort)
	}
	if !out.HasCapability("chat") {
		t.Fatal("expected decoded peer to carry the chat capability")
	}
	port, ok := out.PortForCommandName("chat")
	if !ok || port != 9100 {
		t.Fatalf("PortForCommandName(chat) = (%d, %v), want (9100, true)", port, ok)
	}
}

func TestPeer_UpdateFromTXT_FlagsCapabilityChange(t *testing.T) {
	p := &Peer{}
	entries := []string{"uuid=abc", "pid=rendezvous,1", "sp=1000", "cap=chat"}
	if err := p.UpdateFromTXT(entries); err != nil {
		t.Fatalf("first UpdateFromTXT: %v", err)
	}
	if !p.DidChangeCapabilitiesOnLastUpdate {
		t.Fatal("first update from a zero-value peer should report a capability change")
	}

	if err := p.UpdateFromTXT(entries); err != nil {
		t.Fatalf("second UpdateFromTXT: %v", err)
	}
	if p.DidChangeCapabilitiesOnLastUpdate {
		t.Fatal("repeating the same TXT record should not report a capability change")
	}

	if err := p.UpdateFromTXT([]string{"uuid=abc", "pid=rendezvous,1", "sp=1000", "cap=chat,video"}); err != nil {
		t.Fatalf("third UpdateFromTXT: %v", err)
	}
	if !p.DidChangeCapabilitiesOnLastUpdate {
		t.Fatal("adding a capability should report a capability change")
	}
	if !p.HasCapability("video") {
		t.Fatal("expected video capability after the third update")
	}
}

func TestPeer_UpdateFromTXT_MissingUUID(t *testing.T) {
	p := &Peer{}
	if err := p.UpdateFromTXT([]string{"pid=rendezvous,1"}); err == nil {
		t.Fatal("expected an error for a TXT record missing uuid")
	}
}
