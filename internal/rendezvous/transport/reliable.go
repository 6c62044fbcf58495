package transport

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/clock"
	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
)

// connState is the per-peer TCP connection bookkeeping from
// spec.md §4.3/§5: one connection shared by every R+R command to that
// peer. It carries no reference count: once opened it stays cached
// until RemovePeer or Stop closes it or the connection drops, whether
// or not any pending callback or subscription still uses it.
//
// A freshly created connState starts with conn == nil and dialErr ==
// nil while dial() runs in the background (spec.md §5: "TCP opens are
// non-blocking"); queue buffers frames Send submitted in that window
// so they flush the instant the dial resolves, the way
// TMFTcpChannelConnection.h's GCDAsyncSocket-based async connect
// queues writes against a not-yet-open socket.
type connState struct {
	mu       sync.Mutex
	conn     net.Conn
	writer   *bufio.Writer
	realtime bool
	dialErr  error
	queue    []queuedFrame
}

// queuedFrame is one already-encoded outbound frame waiting on a
// connState's dial to resolve.
type queuedFrame struct {
	peerUUID    string
	id          uint32
	data        []byte
	hasResponse bool
}

// ReliableChannel is the TCP channel variant (spec.md §4.3).
type ReliableChannel struct {
	deps    channelDeps
	clk     clock.Clock
	headerR codec.HeaderSize
	cap     int
	timeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*connState
	closed   bool

	pending *pendingTable
}

// NewReliableChannel constructs the TCP channel. Grounded on
// TMFTcpChannel.h/TMFTcpChannelConnection.h for the per-peer
// connection cache + Nagle-toggle shape (SPEC_FULL.md §11), reusing
// codec.HeaderRR framing for requests/responses.
func NewReliableChannel(log logging.Logger, clk clock.Clock, dispatch Dispatch, onFail FailureReporter, cap int, timeout time.Duration) *ReliableChannel {
	return &ReliableChannel{
		deps:    channelDeps{log: log, dispatch: dispatch, onFail: onFail},
		clk:     clk,
		headerR: codec.HeaderRR,
		cap:     cap,
		timeout: timeout,
		conns:   map[string]*connState{},
		pending: newPendingTable(clk, timeout),
	}
}

func (c *ReliableChannel) Start(port int) (int, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.listener = l
	c.closed = false
	c.mu.Unlock()

	go c.acceptLoop(l)
	return l.Addr().(*net.TCPAddr).Port, nil
}

func (c *ReliableChannel) LocalPort() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return 0
	}
	return c.listener.Addr().(*net.TCPAddr).Port
}

func (c *ReliableChannel) Stop() {
	c.mu.Lock()
	c.closed = true
	l := c.listener
	conns := c.conns
	c.conns = map[string]*connState{}
	c.mu.Unlock()

	if l != nil {
		_ = l.Close()
	}
	for uuid, cs := range conns {
		c.closeConn(uuid, cs)
	}
}

func (c *ReliableChannel) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			c.deps.onFail("CHANNEL_BIND_FAILED", err)
			return
		}
		go c.serveConn(conn)
	}
}

// serveConn owns a single accepted connection's byte callbacks,
// reading frame after frame until it errors or the channel stops.
func (c *ReliableChannel) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		body, err := codec.ReadFrame(conn, c.headerR, c.cap)
		if err != nil {
			if err == codec.ErrFrameTooLarge {
				c.deps.onFail("FRAMING_TOO_LARGE", err)
			}
			c.onConnDropped(conn)
			return
		}
		c.handleFrame(conn, body)
	}
}

// handleFrame tells a request from a response by the presence of a
// "method" field — the reference envelope encoding (spec.md §6) never
// carries both on the same message.
func (c *ReliableChannel) handleFrame(conn net.Conn, body []byte) {
	req, rerr := codec.UnmarshalRequest(body)
	if rerr == nil && req.Method != "" {
		c.deliverRequest(conn, req)
		return
	}

	resp, err := codec.UnmarshalResponse(body)
	if err == nil && resp.ID != 0 {
		c.deliverResponse(conn, resp)
		return
	}

	c.deps.onFail("DECODE_FAILED", fmt.Errorf("rendezvous: could not decode frame"))
}

func (c *ReliableChannel) deliverRequest(conn net.Conn, req *codec.Request) {
	remote, _ := conn.RemoteAddr().(*net.TCPAddr)
	from := PeerAddress{}
	if remote != nil {
		from.IP = remote.IP.String()
	}

	var respond func(result interface{}, respErr error)
	if req.ID != 0 {
		respond = func(result interface{}, respErr error) {
			resp := &codec.Response{ID: req.ID}
			if respErr != nil {
				code := 1
				if ce, ok := respErr.(CodedError); ok {
					code = ce.Code()
				}
				resp.Error = &codec.ResponseError{Code: code, Message: respErr.Error()}
			} else {
				resp.Result = result
			}
			c.writeEnvelope(conn, resp)
		}
	}

	c.deps.dispatch(Inbound{
		Method:     req.Method,
		Params:     req.Params,
		From:       from,
		ResponseID: req.ID,
		Respond:    respond,
	})
}

// deliverResponse matches an inbound response to the pending-callback
// table by (peer,id): the peer identity is resolved from which cached
// connState this conn belongs to, since an outbound connection is
// always opened and cached keyed by the peer UUID it was dialed for.
func (c *ReliableChannel) deliverResponse(conn net.Conn, resp *codec.Response) {
	c.mu.Lock()
	var uuid string
	for u, s := range c.conns {
		s.mu.Lock()
		match := s.conn == conn
		s.mu.Unlock()
		if match {
			uuid = u
			break
		}
	}
	c.mu.Unlock()
	if uuid == "" {
		return
	}
	if resp.Error != nil {
		c.pending.complete(uuid, resp.ID, nil, &RemoteError{Code: resp.Error.Code, Message: "rendezvous: remote error: " + resp.Error.Message})
		return
	}
	c.pending.complete(uuid, resp.ID, resp.Result, nil)
}

func (c *ReliableChannel) writeEnvelope(conn net.Conn, v interface{}) {
	data, err := codec.Marshal(v)
	if err != nil {
		c.deps.onFail("DECODE_FAILED", err)
		return
	}
	if err := codec.WriteFrame(conn, c.headerR, data); err != nil {
		c.onConnDropped(conn)
	}
}

func (c *ReliableChannel) onConnDropped(conn net.Conn) {
	c.mu.Lock()
	var uuid string
	var cs *connState
	for u, s := range c.conns {
		s.mu.Lock()
		match := s.conn == conn
		s.mu.Unlock()
		if match {
			uuid, cs = u, s
			delete(c.conns, u)
			break
		}
	}
	c.mu.Unlock()
	_ = conn.Close()
	if cs != nil {
		n := c.pending.failAllForPeer(uuid, fmt.Errorf("rendezvous: connection to %s closed: %w", uuid, ErrConnectionClosed))
		if n > 0 {
			c.deps.log.Debugf("failed %d pending callbacks for %s on connection close", n, uuid)
		}
	}
}

func (c *ReliableChannel) closeConn(uuid string, cs *connState) {
	cs.mu.Lock()
	conn := cs.conn
	cs.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.pending.failAllForPeer(uuid, fmt.Errorf("rendezvous: peer %s removed: %w", uuid, ErrConnectionClosed))
}

// getOrDial returns the cached connState for peer, or installs a new
// one and dials it in the background (spec.md §5: "TCP opens are
// non-blocking"). The returned connState may still be mid-dial;
// writeOrQueue buffers frames against it until dial() resolves one way
// or the other.
func (c *ReliableChannel) getOrDial(peer PeerAddress, realtime bool) *connState {
	c.mu.Lock()
	cs, ok := c.conns[peer.UUID]
	if ok {
		c.mu.Unlock()
		c.applyRealtime(cs, realtime)
		return cs
	}
	cs = &connState{}
	c.conns[peer.UUID] = cs
	c.mu.Unlock()

	go c.dial(peer, realtime, cs)
	return cs
}

// dial opens the TCP connection to peer in the background, then
// flushes whatever frames writeOrQueue buffered while the dial was in
// flight (spec.md §5 "a pending send queued on a not-yet-open
// connection is flushed on open"), mirroring
// TMFTcpChannelConnection.h's async-connect-then-flush-queue shape. A
// failed dial evicts cs so the next Send retries from scratch, and
// fails every queued frame's pending callback with the dial error.
func (c *ReliableChannel) dial(peer PeerAddress, realtime bool, cs *connState) {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", peer.IP, peer.Port))
	if err != nil {
		cs.mu.Lock()
		cs.dialErr = err
		queued := cs.queue
		cs.queue = nil
		cs.mu.Unlock()

		c.mu.Lock()
		if c.conns[peer.UUID] == cs {
			delete(c.conns, peer.UUID)
		}
		c.mu.Unlock()

		for _, f := range queued {
			c.failQueuedFrame(f, err)
		}
		return
	}

	c.mu.Lock()
	stillCurrent := c.conns[peer.UUID] == cs
	c.mu.Unlock()
	if !stillCurrent {
		// The channel stopped or the peer was removed while this dial
		// was in flight; its connState is already gone, so this
		// connection has nobody left to serve.
		_ = conn.Close()
		cs.mu.Lock()
		queued := cs.queue
		cs.queue = nil
		cs.mu.Unlock()
		for _, f := range queued {
			c.failQueuedFrame(f, ErrConnectionClosed)
		}
		return
	}

	cs.mu.Lock()
	cs.conn = conn
	cs.writer = bufio.NewWriter(conn)
	queued := cs.queue
	cs.queue = nil
	cs.mu.Unlock()

	c.applyRealtime(cs, realtime)
	go c.serveConn(conn)

	for _, f := range queued {
		c.writeFrame(cs, f)
	}
}

// failQueuedFrame reports a dial failure for one buffered frame: a
// request awaiting a response fails that response's pending-callback
// entry directly; a notification has no waiting caller, so the
// failure is reported to the connector delegate instead (spec.md §7).
func (c *ReliableChannel) failQueuedFrame(f queuedFrame, err error) {
	if f.hasResponse {
		c.pending.complete(f.peerUUID, f.id, nil, err)
		return
	}
	c.deps.onFail("CONNECTION_CLOSED", fmt.Errorf("rendezvous: dial to %s failed: %w: %w", f.peerUUID, ErrConnectionClosed, err))
}

// applyRealtime toggles TCP_NODELAY for commands whose isRealTime flag
// is set, disabling small-write coalescing on that connection
// (spec.md §4.3; SPEC_FULL.md §11 supplemented feature). Once a
// realtime command shares a connection with a non-realtime one,
// realtime wins and stays set. A no-op while the connection is still
// dialing; dial() re-applies it once cs.conn is set.
func (c *ReliableChannel) applyRealtime(cs *connState, realtime bool) {
	if !realtime {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.realtime || cs.conn == nil {
		return
	}
	if tcp, ok := cs.conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	cs.realtime = true
}

// writeOrQueue writes data to cs's connection if it's already open,
// buffers it on cs.queue if the dial is still in flight, or fails
// immediately if the dial has already failed.
func (c *ReliableChannel) writeOrQueue(cs *connState, peerUUID string, id uint32, data []byte, hasResponse bool) {
	cs.mu.Lock()
	switch {
	case cs.conn != nil:
		cs.mu.Unlock()
		c.writeFrame(cs, queuedFrame{peerUUID: peerUUID, id: id, data: data, hasResponse: hasResponse})
	case cs.dialErr != nil:
		dialErr := cs.dialErr
		cs.mu.Unlock()
		c.failQueuedFrame(queuedFrame{peerUUID: peerUUID, id: id, hasResponse: hasResponse}, dialErr)
	default:
		cs.queue = append(cs.queue, queuedFrame{peerUUID: peerUUID, id: id, data: data, hasResponse: hasResponse})
		cs.mu.Unlock()
	}
}

// writeFrame writes an already-encoded frame to cs's open connection,
// failing its pending-callback entry (if any) on a write error. A
// write failure is left for serveConn's read loop to notice and
// evict — the connection may still be readable even if one write
// failed, and a dropped connection is torn down (failing every pending
// entry for that peer) by onConnDropped, not here.
func (c *ReliableChannel) writeFrame(cs *connState, f queuedFrame) {
	cs.mu.Lock()
	writeErr := codec.WriteFrame(cs.conn, c.headerR, f.data)
	cs.mu.Unlock()

	if writeErr != nil && f.hasResponse {
		c.pending.complete(f.peerUUID, f.id, nil, writeErr)
	}
}

// Send transmits a request or push to peer. responseCb, if non-nil, is
// guaranteed to fire exactly once — whether the request never left
// this process (encode failure, dial failure) or failed in flight
// (write failure, timeout, connection drop) — so callers only ever
// need to watch the callback, never race it against Send's return
// error. Send itself never blocks on the network: a not-yet-cached
// peer is dialed in the background and the request is queued until
// the dial resolves (spec.md §5).
func (c *ReliableChannel) Send(method string, args interface{}, peer PeerAddress, realtime bool, responseCb codec.ResponseCallback) error {
	var id uint32
	if responseCb != nil {
		id = c.pending.nextRequestID()
		c.pending.register(peer.UUID, id, responseCb)
	}

	req, err := codec.EncodeRequest(id, method, args)
	if err != nil {
		if responseCb != nil {
			c.pending.complete(peer.UUID, id, nil, err)
		}
		return err
	}
	data, err := codec.Marshal(req)
	if err != nil {
		if responseCb != nil {
			c.pending.complete(peer.UUID, id, nil, err)
		}
		return err
	}

	cs := c.getOrDial(peer, realtime)
	c.writeOrQueue(cs, peer.UUID, id, data, responseCb != nil)
	return nil
}

func (c *ReliableChannel) RemovePeer(peerUUID string) {
	c.mu.Lock()
	cs, ok := c.conns[peerUUID]
	if ok {
		delete(c.conns, peerUUID)
	}
	c.mu.Unlock()
	if ok {
		c.closeConn(peerUUID, cs)
	}
}

var _ Channel = (*ReliableChannel)(nil)
