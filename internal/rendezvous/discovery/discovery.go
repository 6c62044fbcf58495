// Package discovery implements the peer lifecycle from spec.md §4.4:
// mDNS/DNS-SD publication and browsing, the heartbeat handshake that
// gates a resolved service into a visible Peer, capability-filtered
// delegate notifications, and the 120s grace window for withdrawn
// peers.
package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/clock"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
	"github.com/jabolina/rendezvous/internal/rendezvous/types"
)

// ChangeKind classifies a discovering-delegate notification (spec.md
// §4.7 "Discovery filtering").
type ChangeKind int

const (
	ChangeFound ChangeKind = iota
	ChangeUpdate
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeFound:
		return "Found"
	case ChangeUpdate:
		return "Update"
	case ChangeRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Deps bundles the discovery layer's collaborators.
type Deps struct {
	Log logging.Logger
	Clk clock.Clock

	Local *types.Peer

	ServiceType         string
	ServiceDomain       string
	ProtocolIdentifier  string
	HeartbeatGrace      time.Duration
	HeartbeatInterval   time.Duration

	// SendHeartbeat sends a _hb request to peer over the reliable
	// system channel; cb fires with a non-nil error on timeout or
	// connection failure (spec.md §4.4 step 5, §4.8).
	SendHeartbeat func(peer *types.Peer, cb func(err error))

	// OnPeerUpdated/OnPeerRemoved are the subscription manager's
	// always-on hooks (spec.md §4.6 heartbeat-driven consistency);
	// unlike the capability-filtered registrations below, these fire
	// for every peer regardless of any discovering delegate.
	OnPeerUpdated func(peer *types.Peer)
	OnPeerRemoved func(uuid string)
}

type registration struct {
	required   []string
	onChange   func(ChangeKind, *types.Peer)
	membership map[string]bool
}

// Discovery owns the peer table, the mDNS service, and the set of
// capability-filtered discovering-delegate registrations.
type Discovery struct {
	deps Deps

	mu    sync.Mutex
	peers map[string]*peerEntry
	regs  map[string]*registration
	nextRegID int

	server  *mdnsServer
	browser *mdnsBrowser
	cancel  context.CancelFunc
}

// peerEntry pairs a Peer record with its liveness timer (grace.go).
type peerEntry struct {
	peer  *types.Peer
	timer *clock.Timer
}

func New(deps Deps) *Discovery {
	if deps.HeartbeatInterval == 0 {
		deps.HeartbeatInterval = deps.HeartbeatGrace / 3
	}
	return &Discovery{
		deps:  deps,
		peers: map[string]*peerEntry{},
		regs:  map[string]*registration{},
	}
}

// Start publishes the local service and begins browsing for peers
// (spec.md §4.4).
func (d *Discovery) Start() error {
	server, err := newMDNSServer(d.deps.Local, d.deps.ServiceType, d.deps.ServiceDomain)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	browser, err := newMDNSBrowser(ctx, d.deps.ServiceType, d.deps.ServiceDomain, d.handleEntry)
	if err != nil {
		server.shutdown()
		cancel()
		return err
	}

	d.mu.Lock()
	d.server = server
	d.browser = browser
	d.cancel = cancel
	d.mu.Unlock()

	go d.heartbeatLoop(ctx)
	return nil
}

// Stop withdraws the local service and stops browsing; peer records
// and their grace timers are discarded without notification, mirroring
// the background-lifecycle rule in spec.md §5 ("on backgrounding,
// discovery is stopped... peers are removed").
func (d *Discovery) Stop() {
	d.mu.Lock()
	server := d.server
	cancel := d.cancel
	for _, e := range d.peers {
		e.timer.Stop()
	}
	d.peers = map[string]*peerEntry{}
	d.server = nil
	d.browser = nil
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if server != nil {
		server.shutdown()
	}
}

// Republish re-registers the local mDNS service instance with the
// current local peer TXT record (spec.md control flow: "user publishes
// commands → registry updates capability set → discovery re-publishes
// TXT"). zeroconf has no in-place TXT update, so this withdraws the
// old service instance and advertises a fresh one; the UUID/port stay
// identical, so peers that re-resolve see the same identity with an
// updated capability list.
func (d *Discovery) Republish() error {
	d.mu.Lock()
	running := d.server != nil
	d.mu.Unlock()
	if !running {
		return nil
	}

	server, err := newMDNSServer(d.deps.Local, d.deps.ServiceType, d.deps.ServiceDomain)
	if err != nil {
		return err
	}

	d.mu.Lock()
	old := d.server
	d.server = server
	d.mu.Unlock()

	if old != nil {
		old.shutdown()
	}
	return nil
}

// Visible resolves a peer by UUID, reporting ok == false unless the
// peer has completed the heartbeat handshake (spec.md §4.6 step 1).
func (d *Discovery) Visible(uuid string) (*types.Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.peers[uuid]
	if !ok || !e.peer.Visible {
		return nil, false
	}
	return e.peer, true
}

// PeerByUUID resolves a peer record by UUID regardless of visibility,
// used by inbound-message routing (e.g. a multicast push's sender
// UUID is known directly from the transport layer, spec.md §4.3).
func (d *Discovery) PeerByUUID(uuid string) (*types.Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.peers[uuid]
	if !ok {
		return nil, false
	}
	return e.peer, true
}

// PeerByAddress resolves a peer record by source IP, used when an
// inbound reliable/unreliable message carries only an address and not
// a UUID (spec.md §4.6 step 2: "Resolve sender peer via source
// address").
func (d *Discovery) PeerByAddress(ip net.IP) (*types.Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.peers {
		if e.peer.HasAddress(ip) {
			return e.peer, true
		}
	}
	return nil, false
}

// Peers returns a snapshot of every peer record, visible or not.
func (d *Discovery) Peers() []*types.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*types.Peer, 0, len(d.peers))
	for _, e := range d.peers {
		out = append(out, e.peer)
	}
	return out
}

// StartDiscovery registers a capability-filtered delegate (spec.md
// §4.7): onChange fires Found/Update/Remove as visible peers' capability
// sets cross the requiredCapabilities superset relation. It returns a
// handle for StopDiscovery.
func (d *Discovery) StartDiscovery(requiredCapabilities []string, onChange func(ChangeKind, *types.Peer)) string {
	d.mu.Lock()
	d.nextRegID++
	handle := itoa(d.nextRegID)
	reg := &registration{required: requiredCapabilities, onChange: onChange, membership: map[string]bool{}}
	d.regs[handle] = reg

	var toReport []*types.Peer
	for _, e := range d.peers {
		if e.peer.Visible && e.peer.CapabilitiesSuperset(requiredCapabilities) {
			reg.membership[e.peer.UUID] = true
			toReport = append(toReport, e.peer)
		}
	}
	d.mu.Unlock()

	for _, p := range toReport {
		onChange(ChangeFound, p)
	}
	return handle
}

// StopDiscovery unregisters a delegate previously returned by
// StartDiscovery; further peer changes are not reported to it.
func (d *Discovery) StopDiscovery(handle string) {
	d.mu.Lock()
	delete(d.regs, handle)
	d.mu.Unlock()
}

func (d *Discovery) notifyFound(peer *types.Peer) {
	d.mu.Lock()
	var fire []func(ChangeKind, *types.Peer)
	for _, reg := range d.regs {
		if peer.CapabilitiesSuperset(reg.required) {
			reg.membership[peer.UUID] = true
			fire = append(fire, reg.onChange)
		}
	}
	d.mu.Unlock()
	for _, cb := range fire {
		cb(ChangeFound, peer)
	}
}

func (d *Discovery) notifyUpdated(peer *types.Peer) {
	d.mu.Lock()
	type pending struct {
		kind ChangeKind
		cb   func(ChangeKind, *types.Peer)
	}
	var fire []pending
	for _, reg := range d.regs {
		wasMember := reg.membership[peer.UUID]
		isMember := peer.CapabilitiesSuperset(reg.required)
		switch {
		case isMember && !wasMember:
			reg.membership[peer.UUID] = true
			fire = append(fire, pending{ChangeFound, reg.onChange})
		case !isMember && wasMember:
			delete(reg.membership, peer.UUID)
			fire = append(fire, pending{ChangeRemove, reg.onChange})
		case isMember && wasMember:
			fire = append(fire, pending{ChangeUpdate, reg.onChange})
		}
	}
	d.mu.Unlock()
	for _, p := range fire {
		p.cb(p.kind, peer)
	}

	if d.deps.OnPeerUpdated != nil {
		d.deps.OnPeerUpdated(peer)
	}
}

func (d *Discovery) notifyRemoved(peer *types.Peer) {
	d.mu.Lock()
	var fire []func(ChangeKind, *types.Peer)
	for _, reg := range d.regs {
		if reg.membership[peer.UUID] {
			delete(reg.membership, peer.UUID)
			fire = append(fire, reg.onChange)
		}
	}
	d.mu.Unlock()
	for _, cb := range fire {
		cb(ChangeRemove, peer)
	}

	if d.deps.OnPeerRemoved != nil {
		d.deps.OnPeerRemoved(peer.UUID)
	}
}

// heartbeatLoop periodically re-sends _hb to every visible peer,
// refreshing its liveness timer on success (spec.md §3 invariant 4:
// "no peer in the visible set has exceeded 120s without a
// heartbeat"). Peers that don't answer simply let their existing
// liveness timer keep counting down toward removal (grace.go).
func (d *Discovery) heartbeatLoop(ctx context.Context) {
	ticker := d.deps.Clk.Ticker(d.deps.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pingVisiblePeers()
		}
	}
}

func (d *Discovery) pingVisiblePeers() {
	d.mu.Lock()
	var targets []*types.Peer
	for _, e := range d.peers {
		if e.peer.Visible {
			targets = append(targets, e.peer)
		}
	}
	d.mu.Unlock()

	for _, p := range targets {
		peer := p
		d.deps.SendHeartbeat(peer, func(err error) {
			if err == nil {
				d.refreshLiveness(peer.UUID)
			}
		})
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
