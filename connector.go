package rendezvous

// ConnectorDelegate is the single delegate surface spec.md §9 resolves
// the source's duplicated TMFConnectorDelegate (connector: vs
// threeMF: method prefixes) into (SPEC_FULL.md §11). Every method is
// invoked on the Dispatcher's Executor, never inline from an I/O
// callback. Any embedder may leave methods as no-ops by embedding
// NopConnectorDelegate.
type ConnectorDelegate interface {
	// DidAddPeer fires once a peer's heartbeat handshake completes and
	// it becomes visible (spec.md §4.4 step 5).
	DidAddPeer(peer *Peer)

	// WillRemovePeer fires just before a peer record is destroyed,
	// either after the 120s grace window or an explicit teardown
	// (spec.md §4.4).
	WillRemovePeer(peer *Peer)

	// DidUpdatePeer fires when a visible peer's TXT update changes its
	// capability set; previousCapabilities is populated on the peer so
	// dependent subsystems can diff (spec.md §4.4 last paragraph). A TXT
	// change that leaves the capabilities as they were (such as a new
	// per-command port) updates the peer record without this callback.
	DidUpdatePeer(peer *Peer)

	// DidFailWithError reports a channel/codec-level failure that has
	// no waiting caller (spec.md §7).
	DidFailWithError(kind Kind, err error)

	// DidAddSubscriber/DidRemoveSubscriber fire on the publisher side
	// as remote peers subscribe/unsubscribe (spec.md §4.6).
	DidAddSubscriber(peer *Peer, commandName string)
	DidRemoveSubscriber(peer *Peer, commandName string)

	// DidAddSubscription/DidRemoveSubscription fire on the subscriber
	// side as local outgoing subscriptions are created/destroyed
	// (spec.md §4.6).
	DidAddSubscription(peer *Peer, commandName string)
	DidRemoveSubscription(peer *Peer, commandName string)
}

// NopConnectorDelegate implements every ConnectorDelegate method as a
// no-op, so embedders only need to override the methods they care
// about.
type NopConnectorDelegate struct{}

func (NopConnectorDelegate) DidAddPeer(*Peer)                     {}
func (NopConnectorDelegate) WillRemovePeer(*Peer)                 {}
func (NopConnectorDelegate) DidUpdatePeer(*Peer)                  {}
func (NopConnectorDelegate) DidFailWithError(Kind, error)         {}
func (NopConnectorDelegate) DidAddSubscriber(*Peer, string)       {}
func (NopConnectorDelegate) DidRemoveSubscriber(*Peer, string)    {}
func (NopConnectorDelegate) DidAddSubscription(*Peer, string)     {}
func (NopConnectorDelegate) DidRemoveSubscription(*Peer, string)  {}

var _ ConnectorDelegate = NopConnectorDelegate{}

// DiscoveryDelegate receives capability-filtered peer visibility
// changes for one StartDiscovery registration (spec.md §4.7
// "Discovery filtering").
type DiscoveryDelegate interface {
	// DidChangeDiscoveringPeer fires Found/Update/Remove as a visible
	// peer's capabilities cross the requiredCapabilities superset
	// relation this delegate registered with.
	DidChangeDiscoveringPeer(change DiscoveryChange, peer *Peer)
}

// DiscoveryChange mirrors the internal discovery.ChangeKind at the
// public surface, so callers never need to import the internal
// package.
type DiscoveryChange int

const (
	DiscoveryFound DiscoveryChange = iota
	DiscoveryUpdate
	DiscoveryRemove
)

func (c DiscoveryChange) String() string {
	switch c {
	case DiscoveryFound:
		return "Found"
	case DiscoveryUpdate:
		return "Update"
	case DiscoveryRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// DiscoveryDelegateFunc adapts a plain function to a DiscoveryDelegate,
// the function-valued-field idiom spec.md §9 prescribes as an
// alternative to an interface for small single-method delegates.
type DiscoveryDelegateFunc func(change DiscoveryChange, peer *Peer)

func (f DiscoveryDelegateFunc) DidChangeDiscoveringPeer(change DiscoveryChange, peer *Peer) {
	f(change, peer)
}
