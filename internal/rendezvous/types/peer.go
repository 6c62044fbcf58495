package types

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SystemCommandName is the command name carrying system traffic; it is
// always present in portByCommandName, aliasing the system port.
const SystemCommandName = "_hb_system"

// Peer is the data-model record from spec.md §3. A session UUID
// identifies it uniquely for the lifetime of the remote process; the
// UUID is never reused across restarts of that process.
type Peer struct {
	mu sync.RWMutex

	// UUID is stable per remote session (spec.md §3 invariant 1).
	UUID string

	// ProtocolIdentifier is the "name,version" compatibility string.
	ProtocolIdentifier string

	Name     string
	HostName string
	Domain   string

	// Addresses holds every known IP address for this peer. It carries
	// no ports: those are SystemPort and PortByCommandName.
	Addresses []net.IP

	// SystemPort is the port the peer's system channel listens on.
	SystemPort int

	// Capabilities reflects the latest TXT record (spec.md §3
	// invariant 2).
	Capabilities map[string]struct{}

	// PreviousCapabilities is the snapshot taken on the prior update,
	// used by the subscription manager to detect capability loss.
	PreviousCapabilities map[string]struct{}

	// DidChangeCapabilitiesOnLastUpdate is set by UpdateFromTXT when
	// Capabilities differs from the prior snapshot.
	DidChangeCapabilitiesOnLastUpdate bool

	// PortByCommandName maps a command name to the port its channel
	// listens on at this peer. PortByCommandName[SystemCommandName]
	// always equals SystemPort (spec.md §3 invariant).
	PortByCommandName map[string]int

	// Visible is true only after a heartbeat has been received from
	// this peer (spec.md §3 invariant, §4.4).
	Visible bool

	// InGrace is true while a withdrawn-but-not-yet-removed peer is
	// within its 120s grace window (spec.md §4.4).
	InGrace bool
}

// NewLocalPeer creates the Peer record representing this process,
// assigning it a fresh session UUID the way the teacher's helper
// package generates per-entity identifiers, here backed by
// google/uuid (SPEC_FULL.md §10).
func NewLocalPeer(name, protocolIdentifier string, systemPort int) *Peer {
	return &Peer{
		UUID:                 uuid.NewString(),
		ProtocolIdentifier:   protocolIdentifier,
		Name:                 name,
		SystemPort:           systemPort,
		Capabilities:         map[string]struct{}{},
		PreviousCapabilities: map[string]struct{}{},
		PortByCommandName:    map[string]int{SystemCommandName: systemPort},
	}
}

// HasAddress reports whether addr matches one of the peer's known
// addresses, ignoring port (spec.md §4.2 hasAddress).
func (p *Peer) HasAddress(addr net.IP) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range p.Addresses {
		if a.Equal(addr) {
			return true
		}
	}
	return false
}

// SetPort records the port a command's channel listens on at this peer
// (spec.md §4.2 setPort).
func (p *Peer) SetPort(port int, commandName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PortByCommandName == nil {
		p.PortByCommandName = map[string]int{}
	}
	p.PortByCommandName[commandName] = port
}

// PortForCommandName returns the port a command's channel listens on
// at this peer, and whether it is known.
func (p *Peer) PortForCommandName(commandName string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	port, ok := p.PortByCommandName[commandName]
	return port, ok
}

// SetSystemPort records the bound system-channel port once the
// dispatcher's reliable channel has actually started (spec.md §3
// invariant: "portByCommandName[systemCommandName] == systemPort").
// NewLocalPeer is constructed before the channel binds, so the real
// port is only known after Start.
func (p *Peer) SetSystemPort(port int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SystemPort = port
	if p.PortByCommandName == nil {
		p.PortByCommandName = map[string]int{}
	}
	p.PortByCommandName[SystemCommandName] = port
}

// SetCapabilities replaces the local peer's published capability set,
// used by the dispatcher's registry onChange hook (spec.md §2 control
// flow: "user publishes commands → registry updates capability set").
// Unlike UpdateFromTXT this never touches PreviousCapabilities: that
// field only has meaning for a remote peer's TXT diff.
func (p *Peer) SetCapabilities(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	caps := make(map[string]struct{}, len(names))
	for _, n := range names {
		caps[n] = struct{}{}
	}
	p.Capabilities = caps
}

// HasCapability reports whether name is currently in the peer's
// capability set.
func (p *Peer) HasCapability(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.Capabilities[name]
	return ok
}

// CapabilitiesSuperset reports whether the peer's capability set is a
// superset of required (used by discovery filtering, spec.md §4.7).
func (p *Peer) CapabilitiesSuperset(required []string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range required {
		if _, ok := p.Capabilities[r]; !ok {
			return false
		}
	}
	return true
}

// CapabilityList returns a sorted snapshot of the peer's capabilities,
// used to reproduce the TXT "cap" value deterministically.
func (p *Peer) CapabilityList() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.Capabilities))
	for c := range p.Capabilities {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// txtKeyUUID, txtKeyProtocolID, txtKeySystemPort and txtKeyCapabilities
// are the TXT record keys from spec.md §4.2.
const (
	txtKeyUUID         = "uuid"
	txtKeyProtocolID   = "pid"
	txtKeySystemPort   = "sp"
	txtKeyCapabilities = "cap"
)

// EncodeTXT produces the string key→value pairs published in mDNS,
// per the layout in spec.md §4.2: uuid, pid, sp, cap plus one key per
// command-specific port.
func (p *Peer) EncodeTXT() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	caps := make([]string, 0, len(p.Capabilities))
	for c := range p.Capabilities {
		caps = append(caps, c)
	}
	sort.Strings(caps)

	out := []string{
		fmt.Sprintf("%s=%s", txtKeyUUID, p.UUID),
		fmt.Sprintf("%s=%s", txtKeyProtocolID, p.ProtocolIdentifier),
		fmt.Sprintf("%s=%d", txtKeySystemPort, p.SystemPort),
		fmt.Sprintf("%s=%s", txtKeyCapabilities, strings.Join(caps, ",")),
	}

	for name, port := range p.PortByCommandName {
		if name == SystemCommandName {
			continue
		}
		out = append(out, fmt.Sprintf("%s=%d", name, port))
	}
	return out
}

// UpdateFromTXT parses a TXT record into the peer's fields, capturing
// the prior capability set into PreviousCapabilities and flagging
// whether the set changed (spec.md §4.2 updateFromTXT).
func (p *Peer) UpdateFromTXT(entries []string) error {
	fields := map[string]string{}
	for _, e := range entries {
		kv := strings.SplitN(e, "=", 2)
		if len(kv) != 2 {
			continue
		}
		fields[kv[0]] = kv[1]
	}

	uuidValue, ok := fields[txtKeyUUID]
	if !ok || uuidValue == "" {
		return fmt.Errorf("rendezvous: TXT record missing %q", txtKeyUUID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.UUID = uuidValue
	p.ProtocolIdentifier = fields[txtKeyProtocolID]

	if spStr, ok := fields[txtKeySystemPort]; ok {
		if sp, err := strconv.Atoi(spStr); err == nil {
			p.SystemPort = sp
			if p.PortByCommandName == nil {
				p.PortByCommandName = map[string]int{}
			}
			p.PortByCommandName[SystemCommandName] = sp
		}
	}

	newCaps := map[string]struct{}{}
	if capStr, ok := fields[txtKeyCapabilities]; ok && capStr != "" {
		for _, c := range strings.Split(capStr, ",") {
			newCaps[c] = struct{}{}
		}
	}

	p.PreviousCapabilities = p.Capabilities
	p.DidChangeCapabilitiesOnLastUpdate = !capabilitySetsEqual(p.PreviousCapabilities, newCaps)
	p.Capabilities = newCaps

	for key, value := range fields {
		switch key {
		case txtKeyUUID, txtKeyProtocolID, txtKeySystemPort, txtKeyCapabilities:
			continue
		default:
			if port, err := strconv.Atoi(value); err == nil {
				if p.PortByCommandName == nil {
					p.PortByCommandName = map[string]int{}
				}
				p.PortByCommandName[key] = port
			}
		}
	}

	return nil
}

func capabilitySetsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
