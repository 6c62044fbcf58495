package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jabolina/relt/pkg/relt"
	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
	promlog "github.com/prometheus/common/log"
)

// MulticastChannel is the UDP-multicast channel variant (spec.md
// §4.3): a UDP channel additionally joined to a configured group,
// de-duplicating receives by (sender-uuid, id) within a short window
// and refusing to loop back its own sends.
//
// Grounded on the teacher's ReliableTransport in core/transport.go,
// which wraps github.com/jabolina/relt the same way: relt already
// provides group-addressed reliable send/consume over UDP, exactly
// what this channel needs underneath the spec's de-dup window
// (SPEC_FULL.md §10).
type MulticastChannel struct {
	deps    channelDeps
	localID string
	group   string

	mu     sync.Mutex
	r      *relt.Relt
	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	dedup *lru.LRU[string, struct{}]
}

// NewMulticastChannel constructs the multicast channel. localID
// identifies this peer's own sends so they can be dropped on receive
// (spec.md §4.3: "Peers must not loop back their own sends").
func NewMulticastChannel(log logging.Logger, dispatch Dispatch, onFail FailureReporter, localID, group string, dedupWindow time.Duration) *MulticastChannel {
	return &MulticastChannel{
		deps:    channelDeps{log: log, dispatch: dispatch, onFail: onFail},
		localID: localID,
		group:   group,
		dedup:   lru.NewLRU[string, struct{}](4096, nil, dedupWindow),
	}
}

func (c *MulticastChannel) Start(port int) (int, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = c.localID
	conf.Exchange = relt.GroupAddress(c.group)

	r, err := relt.NewRelt(*conf)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.r = r
	c.ctx = ctx
	c.cancel = cancel
	c.closed = false
	c.mu.Unlock()

	go c.poll(r)
	return port, nil
}

func (c *MulticastChannel) LocalPort() int { return 0 }

func (c *MulticastChannel) Stop() {
	c.mu.Lock()
	c.closed = true
	r := c.r
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if r != nil {
		if err := r.Close(); err != nil {
			c.deps.log.Errorf("rendezvous: failed stopping multicast channel: %v", err)
		}
	}
}

func (c *MulticastChannel) poll(r *relt.Relt) {
	listener, err := r.Consume()
	if err != nil {
		c.deps.onFail("CHANNEL_BIND_FAILED", err)
		return
	}
	for {
		select {
		case <-c.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			c.consume(recv.Origin, recv.Data, recv.Error)
		}
	}
}

func (c *MulticastChannel) consume(origin string, data []byte, recvErr error) {
	if recvErr != nil {
		promlog.Errorf("rendezvous multicast receive from %s failed: %v", origin, recvErr)
		return
	}
	if origin == c.localID {
		return // never loop back our own sends
	}

	req, err := codec.UnmarshalRequest(data)
	if err != nil {
		c.deps.onFail("DECODE_FAILED", err)
		return
	}

	dedupKey := fmt.Sprintf("%s|%d", origin, req.ID)
	if _, seen := c.dedup.Get(dedupKey); seen {
		return
	}
	c.dedup.Add(dedupKey, struct{}{})

	c.deps.dispatch(Inbound{
		Method: req.Method,
		Params: req.Params,
		From:   PeerAddress{UUID: origin},
	})
}

// Send fans a push out to the multicast group. responseCb is ignored:
// multicast carries notifications only, same as the unreliable
// channel. realtime is ignored for the same reason it is on the
// unreliable channel: there is no TCP write-coalescing to disable.
func (c *MulticastChannel) Send(method string, args interface{}, _ PeerAddress, _ bool, _ codec.ResponseCallback) error {
	req, err := codec.EncodeRequest(0, method, args)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	r := c.r
	ctx := c.ctx
	c.mu.Unlock()
	if r == nil {
		return fmt.Errorf("rendezvous: multicast channel not started")
	}

	return r.Broadcast(ctx, relt.Send{
		Address: relt.GroupAddress(c.group),
		Data:    data,
	})
}

func (c *MulticastChannel) RemovePeer(string) {
	// The multicast group has no per-peer connection state to tear
	// down; membership is group-wide, not per-peer.
}

var _ Channel = (*MulticastChannel)(nil)
