package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
)

// maxDatagramSize is the conservative ceiling spec.md §4.1 gestures at
// ("path MTU minus header"); messages over this SHOULD not be sent but
// are not blocked, only warned about.
const maxDatagramSize = 1400

// UnreliableChannel is the UDP channel variant (spec.md §4.3): no
// response tracking, notifications only (id == 0), tolerates
// reordering and loss.
type UnreliableChannel struct {
	deps channelDeps

	mu   sync.Mutex
	conn *net.UDPConn
}

func NewUnreliableChannel(log logging.Logger, dispatch Dispatch, onFail FailureReporter) *UnreliableChannel {
	return &UnreliableChannel{deps: channelDeps{log: log, dispatch: dispatch, onFail: onFail}}
}

func (c *UnreliableChannel) Start(port int) (int, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return conn.LocalAddr().(*net.UDPAddr).Port, nil
}

func (c *UnreliableChannel) LocalPort() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0
	}
	return c.conn.LocalAddr().(*net.UDPAddr).Port
}

func (c *UnreliableChannel) Stop() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *UnreliableChannel) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65536)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // closed
		}
		body := make([]byte, n)
		copy(body, buf[:n])
		c.handleDatagram(addr, body)
	}
}

func (c *UnreliableChannel) handleDatagram(addr *net.UDPAddr, body []byte) {
	req, err := codec.UnmarshalRequest(body)
	if err != nil {
		c.deps.onFail("DECODE_FAILED", err)
		return
	}
	c.deps.dispatch(Inbound{
		Method: req.Method,
		Params: req.Params,
		From:   PeerAddress{IP: addr.IP.String(), Port: addr.Port},
	})
}

// Send addresses a single datagram to peer.addresses[primary]:
// peer.portForCommandName(command.name) per spec.md §4.3. responseCb
// is ignored: the unreliable channel never tracks responses. realtime
// is likewise ignored: small-write coalescing is a TCP-only concept
// (spec.md §4.3).
func (c *UnreliableChannel) Send(method string, args interface{}, peer PeerAddress, _ bool, _ codec.ResponseCallback) error {
	req, err := codec.EncodeRequest(0, method, args)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(req)
	if err != nil {
		return err
	}
	if len(data) > maxDatagramSize {
		c.deps.log.Warnf("PAYLOAD_TOO_LARGE: %s message to %s is %d bytes", method, peer.UUID, len(data))
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rendezvous: unreliable channel not started")
	}

	addr := &net.UDPAddr{IP: net.ParseIP(peer.IP), Port: peer.Port}
	_, err = conn.WriteToUDP(data, addr)
	return err
}

func (c *UnreliableChannel) RemovePeer(string) {
	// UDP channel keeps no per-peer state to tear down.
}

var _ Channel = (*UnreliableChannel)(nil)
