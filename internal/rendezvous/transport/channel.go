// Package transport implements the three channel variants from
// spec.md §4.3: reliable (TCP), unreliable (UDP) and multicast (UDP
// joined to a group), sharing one Channel interface the dispatcher
// drives without caring which concrete transport a command rides on.
package transport

import (
	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
)

// PeerAddress is enough addressing information to reach a peer's
// channel: its session UUID (for connection-cache keying and dedup),
// its IP and the port this particular channel listens on there.
type PeerAddress struct {
	UUID string
	IP   string
	Port int
}

// Inbound is a decoded request or push handed up to the dispatcher.
// ResponseID is 0 for a notification/push (spec.md §3); Respond is
// nil in that case.
type Inbound struct {
	Method     string
	Params     []interface{}
	From       PeerAddress
	ResponseID uint32
	Respond    func(result interface{}, respErr error)
}

// Dispatch receives every inbound message a channel decodes, the way
// spec.md §4.3 describes channels invoking "the dispatcher on
// inbound."
type Dispatch func(Inbound)

// FailureReporter receives channel-level failures that have no
// waiting caller to report to directly (spec.md §7: "errors
// originating below the dispatcher... are reported to the connector
// delegate").
type FailureReporter func(kind string, err error)

// Channel is the shared surface for TCP, UDP and multicast transports
// (spec.md §4.3).
type Channel interface {
	// Start binds the channel's listening socket. port == 0 lets the
	// OS assign one; the bound port is returned.
	Start(port int) (int, error)

	// Stop tears the channel down, releasing its listening socket and
	// any cached per-peer connections.
	Stop()

	// Send transmits a request or push to peer. For R+R commands with
	// a non-nil responseCb, a pending-callback entry is installed and
	// the callback fires when the correlated response arrives, the
	// connection drops, or the request times out. realtime carries
	// the originating command's isRealTime attribute (spec.md §4.3):
	// the reliable channel disables small-write coalescing on the
	// peer's connection when set; other channel variants ignore it.
	Send(method string, args interface{}, peer PeerAddress, realtime bool, responseCb codec.ResponseCallback) error

	// RemovePeer tears down any connection/state cached for peer.
	RemovePeer(peerUUID string)

	// LocalPort reports the bound listening port.
	LocalPort() int
}

// channelDeps bundles the collaborators every concrete channel needs;
// composing it once keeps the three constructors' signatures aligned.
type channelDeps struct {
	log      logging.Logger
	dispatch Dispatch
	onFail   FailureReporter
}
