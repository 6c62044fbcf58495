package discovery

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// handleEntry processes one resolved (or withdrawn) mDNS service
// instance (spec.md §4.4). Visible/InGrace/Addresses/HostName/Domain
// are treated as owned by the discovery layer and guarded by
// Discovery.mu rather than the Peer's own mutex, which guards only
// the TXT-derived fields UpdateFromTXT touches.
func (d *Discovery) handleEntry(svc resolvedService) {
	tmp := &types.Peer{}
	if err := tmp.UpdateFromTXT(svc.txt); err != nil {
		d.deps.Log.Warnf("rendezvous: discovery: malformed TXT record: %v", err)
		return
	}
	if tmp.ProtocolIdentifier != d.deps.ProtocolIdentifier {
		return
	}
	if tmp.UUID == d.deps.Local.UUID {
		return
	}

	d.mu.Lock()
	e, exists := d.peers[tmp.UUID]
	d.mu.Unlock()

	if !exists {
		if svc.withdrawn {
			return
		}
		tmp.HostName = svc.hostName
		tmp.Domain = svc.domain
		tmp.Addresses = svc.addresses

		timer := d.deps.Clk.AfterFunc(d.deps.HeartbeatGrace, func() { d.onLivenessExpired(tmp.UUID) })
		d.mu.Lock()
		d.peers[tmp.UUID] = &peerEntry{peer: tmp, timer: timer}
		d.mu.Unlock()

		// Step 4/5 of spec.md §4.4: a tentative peer is never reported
		// to any discovering delegate until its heartbeat handshake
		// succeeds.
		d.sendHandshake(tmp)
		return
	}

	peer := e.peer
	if svc.withdrawn {
		d.mu.Lock()
		peer.InGrace = true
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	peer.HostName = svc.hostName
	peer.Domain = svc.domain
	peer.Addresses = svc.addresses
	peer.InGrace = false
	d.mu.Unlock()

	if err := peer.UpdateFromTXT(svc.txt); err != nil {
		d.deps.Log.Warnf("rendezvous: discovery: malformed TXT update from %s: %v", peer.UUID, err)
		return
	}
	d.refreshLiveness(peer.UUID)

	if peer.DidChangeCapabilitiesOnLastUpdate && peer.Visible {
		d.notifyUpdated(peer)
	}
}

// sendHandshake performs the heartbeat handshake spec.md §4.4 step 5
// describes: a successful _hb round trip marks the peer visible and
// fires the Found notification exactly once.
func (d *Discovery) sendHandshake(peer *types.Peer) {
	d.deps.SendHeartbeat(peer, func(err error) {
		if err != nil {
			d.deps.Log.Debugf("rendezvous: discovery: handshake with %s failed: %v", peer.UUID, err)
			return
		}

		d.mu.Lock()
		alreadyVisible := peer.Visible
		peer.Visible = true
		d.mu.Unlock()

		d.refreshLiveness(peer.UUID)
		if !alreadyVisible {
			d.notifyFound(peer)
		}
	})
}

// NoteHeartbeatReceived refreshes uuid's liveness timer when an
// inbound _hb arrives from a peer already resolved via mDNS.
// Heartbeats are bidirectional, so an inbound one is equally good
// evidence of liveness as the outbound round trip in sendHandshake
// (spec.md §3 invariant 4). A uuid with no known peer is a no-op.
func (d *Discovery) NoteHeartbeatReceived(uuid string) {
	d.refreshLiveness(uuid)
}

// refreshLiveness resets a peer's grace/removal timer, called on
// every successful heartbeat and on every TXT re-resolution — either
// is evidence the peer is still alive (spec.md §3 invariant 4).
func (d *Discovery) refreshLiveness(uuid string) {
	d.mu.Lock()
	e, ok := d.peers[uuid]
	d.mu.Unlock()
	if !ok {
		return
	}
	e.timer.Reset(d.deps.HeartbeatGrace)
}

// onLivenessExpired fires when a peer's timer counts down without a
// refresh: either a withdrawn service's grace window ran out, or a
// visible peer simply stopped answering heartbeats (spec.md §4.4
// "otherwise willRemovePeer fires and the record is destroyed").
func (d *Discovery) onLivenessExpired(uuid string) {
	d.mu.Lock()
	e, ok := d.peers[uuid]
	if ok {
		delete(d.peers, uuid)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	if e.peer.Visible {
		d.notifyRemoved(e.peer)
	} else if d.deps.OnPeerRemoved != nil {
		d.deps.OnPeerRemoved(uuid)
	}
}
