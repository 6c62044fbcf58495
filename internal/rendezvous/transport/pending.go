package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/clock"
	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
)

// pendingKey uniquely identifies a pending-callback table entry:
// (channel, peer, id) per spec.md §3/§8 invariant 1. The channel
// component of the key is implicit — each channel owns its own table
// — so here the key is just (peer, id).
type pendingKey struct {
	peerUUID string
	id       uint32
}

type pendingEntry struct {
	cb    codec.ResponseCallback
	timer *clock.Timer
}

// pendingTable tracks outstanding R+R response callbacks for one
// channel, and the monotonic id counter requests are correlated by
// (spec.md §9: "dispatcher-scoped counter" — here channel-scoped,
// an equivalent granularity since each channel has exactly one
// originating side per peer).
type pendingTable struct {
	mu      sync.Mutex
	entries map[pendingKey]*pendingEntry
	nextID  uint32
	clk     clock.Clock
	timeout time.Duration
}

func newPendingTable(clk clock.Clock, timeout time.Duration) *pendingTable {
	return &pendingTable{
		entries: map[pendingKey]*pendingEntry{},
		clk:     clk,
		timeout: timeout,
	}
}

// nextRequestID allocates a fresh monotonic id, reused only after the
// corresponding entry is removed (spec.md §4.3).
func (t *pendingTable) nextRequestID() uint32 {
	for {
		id := atomic.AddUint32(&t.nextID, 1)
		if id != 0 {
			return id
		}
	}
}

// register installs a pending callback for (peerUUID, id), arming a
// timeout timer that fires TIMEOUT if no response/removal happens
// first (spec.md §5, §8 boundary behavior).
func (t *pendingTable) register(peerUUID string, id uint32, cb codec.ResponseCallback) {
	key := pendingKey{peerUUID: peerUUID, id: id}
	entry := &pendingEntry{cb: cb}
	t.mu.Lock()
	t.entries[key] = entry
	t.mu.Unlock()

	entry.timer = t.clk.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		current, ok := t.entries[key]
		if !ok || current != entry {
			t.mu.Unlock()
			return
		}
		delete(t.entries, key)
		t.mu.Unlock()
		cb(nil, fmt.Errorf("rendezvous: timeout waiting for %s id=%d: %w", peerUUID, id, ErrTimeout))
	})
}

// complete resolves a pending callback with its response, removing
// the table entry and cancelling its timeout timer.
func (t *pendingTable) complete(peerUUID string, id uint32, result interface{}, respErr error) bool {
	key := pendingKey{peerUUID: peerUUID, id: id}
	t.mu.Lock()
	entry, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	entry.timer.Stop()
	entry.cb(result, respErr)
	return true
}

// failAllForPeer completes every pending callback for peerUUID with
// err — used when that peer's connection drops (spec.md §8 boundary
// behavior: "a connection drop with N pending responses completes
// exactly N callbacks with CONNECTION_CLOSED").
func (t *pendingTable) failAllForPeer(peerUUID string, err error) int {
	t.mu.Lock()
	var toFail []*pendingEntry
	for key, entry := range t.entries {
		if key.peerUUID == peerUUID {
			toFail = append(toFail, entry)
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()

	for _, entry := range toFail {
		entry.timer.Stop()
		entry.cb(nil, err)
	}
	return len(toFail)
}

