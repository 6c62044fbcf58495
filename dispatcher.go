// Package rendezvous is the Facade spec.md §4.7 describes: it owns
// the registry, the system channel, the discovery layer and the
// subscription manager, and exposes the public surface user code
// drives (publish, subscribe, send, discovery) while every inbound
// event is delivered through an injectable Executor.
package rendezvous

import (
	"errors"
	"net"
	"sync"

	"github.com/jabolina/rendezvous/internal/rendezvous/clock"
	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
	"github.com/jabolina/rendezvous/internal/rendezvous/discovery"
	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
	"github.com/jabolina/rendezvous/internal/rendezvous/registry"
	"github.com/jabolina/rendezvous/internal/rendezvous/subscription"
	"github.com/jabolina/rendezvous/internal/rendezvous/systemcmd"
	"github.com/jabolina/rendezvous/internal/rendezvous/transport"
	"github.com/jabolina/rendezvous/internal/rendezvous/types"
)

// Dispatcher is the single owner resolving the Channel↔Dispatcher↔
// Command cycle from spec.md §9: channels and commands never hold a
// back-reference to it, they're looked up by name/UUID through it.
//
// Channel sharing: every command of a given ChannelClass rides one
// shared channel instance for that class (one TCP listener, one UDP
// socket, one multicast membership) rather than a dedicated port per
// command name. The wire envelope's method name is enough to route an
// inbound frame to the right command regardless of which port carried
// it — the same simplification the teacher's single Transport makes
// for its own RPC traffic. A command that truly needs an isolated
// port is a deliberate consumer extension, not a default this core
// provides (spec.md §4.7 "additional...channels created on demand"
// is satisfied by the three per-class channels already being created
// lazily at Start, not eagerly at package init).
type Dispatcher struct {
	cfg      *Config
	local    *types.Peer
	log      logging.Logger
	clk      clock.Clock
	executor Executor
	delegate ConnectorDelegate

	registry *registry.Registry
	subs     *subscription.Manager
	disc     *discovery.Discovery

	reliable   *transport.ReliableChannel
	unreliable *transport.UnreliableChannel
	multicast  *transport.MulticastChannel

	mu      sync.Mutex
	started bool
}

// NewDispatcher constructs the facade. A nil cfg falls back to
// DefaultConfig("rendezvous"); a nil delegate falls back to
// NopConnectorDelegate; a nil executor falls back to
// NewSequentialExecutor(), mirroring the teacher's own
// default-collaborator convention (NewDefaultLogger() when none is
// supplied) and the source's initWithCallBackQueue: default "main
// queue" (SPEC_FULL.md §11).
func NewDispatcher(cfg *Config, delegate ConnectorDelegate, executor Executor) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig("rendezvous")
	}
	if delegate == nil {
		delegate = NopConnectorDelegate{}
	}
	if executor == nil {
		executor = NewSequentialExecutor()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewDefaultLogger()
	}
	clk := clock.New()

	local := types.NewLocalPeer(cfg.Name, cfg.ProtocolIdentifierValue, cfg.SystemPort)

	d := &Dispatcher{
		cfg:      cfg,
		local:    local,
		log:      log,
		clk:      clk,
		executor: executor,
		delegate: delegate,
	}

	d.reliable = transport.NewReliableChannel(log, clk, d.dispatchInbound, d.onChannelFail, cfg.FramingCapRR, cfg.RequestTimeout)
	d.unreliable = transport.NewUnreliableChannel(log, d.dispatchInbound, d.onChannelFail)
	d.multicast = transport.NewMulticastChannel(log, d.dispatchInbound, d.onChannelFail, local.UUID, cfg.MulticastGroupValue, cfg.MulticastDedupTTL)

	d.registry = registry.New(d.onCapabilitiesChanged)

	d.subs = subscription.New(subscription.Deps{
		Log:                 log,
		LookupPeer:          func(uuid string) (*types.Peer, bool) { return d.disc.Visible(uuid) },
		LookupPublished:     d.lookupPublishedPS,
		SendSystem:          d.sendSystem,
		LocalUnreliablePort: d.unreliable.LocalPort,
		Notify: subscription.Notifications{
			DidAddSubscription:    func(p *types.Peer, name string) { d.notify(func() { d.delegate.DidAddSubscription(p, name) }) },
			DidRemoveSubscription: func(p *types.Peer, name string) { d.notify(func() { d.delegate.DidRemoveSubscription(p, name) }) },
			DidAddSubscriber:      func(p *types.Peer, name string) { d.notify(func() { d.delegate.DidAddSubscriber(p, name) }) },
			DidRemoveSubscriber:   func(p *types.Peer, name string) { d.notify(func() { d.delegate.DidRemoveSubscriber(p, name) }) },
		},
	})

	d.disc = discovery.New(discovery.Deps{
		Log:                log,
		Clk:                clk,
		Local:              local,
		ServiceType:        cfg.ServiceTypeValue,
		ServiceDomain:      cfg.ServiceDomainValue,
		ProtocolIdentifier: cfg.ProtocolIdentifierValue,
		HeartbeatGrace:     cfg.HeartbeatGrace,
		SendHeartbeat:      d.sendHeartbeat,
		OnPeerUpdated:      d.subs.OnPeerCapabilitiesChanged,
		OnPeerRemoved:      d.subs.OnPeerRemoved,
	})

	// An always-on, unfiltered registration (required capabilities
	// empty — every peer is trivially a superset of the empty set)
	// gives the unconditional DidAddPeer/DidUpdatePeer/WillRemovePeer
	// lifecycle ConnectorDelegate needs, reusing the same
	// capability-filtered machinery StartDiscovery exposes to callers
	// instead of a second parallel notification path.
	d.disc.StartDiscovery(nil, d.onPeerLifecycleChange)

	d.registerSystemCommands()

	return d
}

func (d *Dispatcher) registerSystemCommands() {
	_ = d.registry.PublishSystem(systemcmd.NewHeartbeat(d.disc))
	_ = d.registry.PublishSystem(systemcmd.NewSubscribe(d.subs))
	_ = d.registry.PublishSystem(systemcmd.NewUnsubscribe(d.subs))
	_ = d.registry.PublishSystem(systemcmd.NewDisconnect(d.subs))
	_ = d.registry.PublishSystem(systemcmd.NewCapability(d.registry.PublishedNames))
}

// RegisterAnnounce installs a concrete _ann handler. The core ships
// only the envelope plumbing for the abstract reverse-discovery hook
// (spec.md §4.8); a concrete argument schema and handler are a
// consumer concern (SPEC_FULL.md §11).
func (d *Dispatcher) RegisterAnnounce(cmd *AnnounceCommand) error {
	if err := d.registry.PublishSystem(cmd); err != nil {
		return mapRegistryErr(err)
	}
	return nil
}

// Start binds the three transport channels, publishes the local mDNS
// service, and begins browsing for peers (spec.md §4.4).
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	port, err := d.reliable.Start(d.cfg.SystemPort)
	if err != nil {
		return newError(KindChannelBindFailed, err)
	}
	d.local.SetSystemPort(port)

	uport, err := d.unreliable.Start(0)
	if err != nil {
		d.reliable.Stop()
		return newError(KindChannelBindFailed, err)
	}
	for _, name := range d.registry.PublishedNames() {
		if ps, ok := d.lookupPublishedPS(name); ok && ps.Channel() == types.ChannelUnreliable {
			d.local.SetPort(uport, name)
		}
	}

	if _, err := d.multicast.Start(d.cfg.MulticastPortValue); err != nil {
		d.reliable.Stop()
		d.unreliable.Stop()
		return newError(KindChannelBindFailed, err)
	}

	if err := d.disc.Start(); err != nil {
		d.reliable.Stop()
		d.unreliable.Stop()
		d.multicast.Stop()
		return newError(KindChannelBindFailed, err)
	}

	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	return nil
}

// Stop tears everything down: discovery withdraws the mDNS service
// and drops peer records without notification, the three channels
// close their sockets, and the executor drains its remaining queued
// callbacks before exiting (spec.md §5 "app lifecycle" backgrounding
// rule).
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	d.disc.Stop()
	d.reliable.Stop()
	d.unreliable.Stop()
	d.multicast.Stop()
	d.executor.Close()
}

// LocalPeer returns the Peer record representing this process.
func (d *Dispatcher) LocalPeer() *Peer { return d.local }

// Peers returns a snapshot of every peer record discovery currently
// holds, visible or still completing its handshake.
func (d *Dispatcher) Peers() []*Peer { return d.disc.Peers() }

// Publish registers cmd with the local registry, rejecting a
// duplicate or reserved name (spec.md §4.5). Publishing a P+S command
// bound to the unreliable channel records its shared UDP port under
// its own name before the capability-change hook republishes TXT, so
// the very first publication already advertises the right port
// (spec.md §4.2 "further optional per-command ports").
func (d *Dispatcher) Publish(cmd Command) error {
	if ps, ok := cmd.(*types.PublishSubscribeCommand); ok && ps.Channel() == types.ChannelUnreliable {
		if port := d.unreliable.LocalPort(); port != 0 {
			d.local.SetPort(port, ps.Name())
		}
	}
	if err := d.registry.Publish(cmd); err != nil {
		return mapRegistryErr(err)
	}
	return nil
}

// PublishMany publishes each command in order, stopping at the first
// failure.
func (d *Dispatcher) PublishMany(cmds []Command) error {
	for _, cmd := range cmds {
		if err := d.Publish(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Unpublish reverses Publish: every current subscriber of a P+S
// command is force-disconnected before the command is removed from
// the registry (spec.md §4.5).
func (d *Dispatcher) Unpublish(cmd Command) error {
	if ps, ok := cmd.(*types.PublishSubscribeCommand); ok {
		var wg sync.WaitGroup
		for _, subscriber := range ps.Subscribers() {
			wg.Add(1)
			d.subs.Disconnect(ps.Name(), subscriber, func(error) { wg.Done() })
		}
		wg.Wait()
	}
	if err := d.registry.Unpublish(cmd.Name()); err != nil {
		return mapRegistryErr(err)
	}
	return nil
}

// StartDiscovery registers delegate under requiredCapabilities
// (spec.md §4.7): any visible peer whose capabilities are a superset
// is reported via DidChangeDiscoveringPeer as Found/Update/Remove
// transitions occur. The returned handle is passed to StopDiscovery.
func (d *Dispatcher) StartDiscovery(requiredCapabilities []string, delegate DiscoveryDelegate) string {
	return d.disc.StartDiscovery(requiredCapabilities, func(kind discovery.ChangeKind, peer *types.Peer) {
		d.notify(func() { delegate.DidChangeDiscoveringPeer(DiscoveryChange(kind), peer) })
	})
}

// StopDiscovery unregisters a delegate previously returned by
// StartDiscovery.
func (d *Dispatcher) StopDiscovery(handle string) {
	d.disc.StopDiscovery(handle)
}

// Subscribe implements spec.md §4.6 subscribe(commandClass,
// configuration, peer, receive, completion).
func (d *Dispatcher) Subscribe(cmd *PublishSubscribeCommand, configuration interface{}, peer *Peer, receive ReceiveHandler, completion func(error)) {
	wrapped := receive
	if receive != nil {
		wrapped = func(args interface{}, p *Peer) {
			d.notify(func() { receive(args, p) })
		}
	}
	d.subs.Subscribe(cmd, configuration, peer, wrapped, d.wrapCompletion(completion))
}

// Unsubscribe tears down one outgoing subscription (spec.md §4.6).
func (d *Dispatcher) Unsubscribe(commandName string, peer *Peer, completion func(error)) {
	d.subs.Unsubscribe(commandName, peer, d.wrapCompletion(completion))
}

// UnsubscribeAll tears down every outgoing subscription held at peer.
func (d *Dispatcher) UnsubscribeAll(peer *Peer, completion func(error)) {
	d.subs.UnsubscribeAll(peer, d.wrapCompletion(completion))
}

// Disconnect is the publisher-initiated teardown of one subscriber
// (spec.md §4.6 disconnect).
func (d *Dispatcher) Disconnect(commandName string, peer *Peer, completion func(error)) {
	d.subs.Disconnect(commandName, peer, d.wrapCompletion(completion))
}

// DisconnectAll tears down every P+S command peer currently subscribes
// to at this dispatcher.
func (d *Dispatcher) DisconnectAll(peer *Peer, completion func(error)) {
	var names []string
	for _, name := range d.registry.PublishedNames() {
		cmd, ok := d.lookupPublishedPS(name)
		if !ok {
			continue
		}
		for _, s := range cmd.Subscribers() {
			if s.UUID == peer.UUID {
				names = append(names, name)
				break
			}
		}
	}
	if len(names) == 0 {
		if completion != nil {
			d.notify(func() { completion(nil) })
		}
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(len(names))
	for _, name := range names {
		d.subs.Disconnect(name, peer, func(err error) {
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			wg.Done()
		})
	}
	go func() {
		wg.Wait()
		if completion != nil {
			mapped := mapSubscriptionErr(firstErr)
			d.notify(func() { completion(mapped) })
		}
	}()
}

// Send transmits a request or push for cmd to peer over whichever
// channel cmd.Channel() selects. On the reliable channel responseCb, if
// non-nil, fires on the Executor exactly once (spec.md §5); the
// unreliable and multicast channels track no responses and never
// invoke it.
func (d *Dispatcher) Send(cmd Command, args interface{}, peer *Peer, responseCb ResponseCallback) error {
	ch, err := d.channelFor(cmd.Channel())
	if err != nil {
		return err
	}

	addr := d.peerAddressFor(peer, cmd)

	var wrapped codec.ResponseCallback
	if responseCb != nil {
		wrapped = func(result interface{}, err error) {
			d.notify(func() { responseCb(result, mapTransportErr(err)) })
		}
	}
	return ch.Send(cmd.Name(), args, addr, isRealtimeCommand(cmd), wrapped)
}

// isRealtimeCommand reports whether cmd is a P+S command with its
// isRealTime attribute set (spec.md §4.3); only PublishSubscribeCommand
// carries that attribute, so every other Command variant is never
// realtime.
func isRealtimeCommand(cmd Command) bool {
	ps, ok := cmd.(*types.PublishSubscribeCommand)
	return ok && ps.IsRealTime
}

func (d *Dispatcher) channelFor(class ChannelClass) (transport.Channel, error) {
	switch class {
	case ChannelReliable:
		return d.reliable, nil
	case ChannelUnreliable:
		return d.unreliable, nil
	case ChannelMulticast:
		return d.multicast, nil
	default:
		return nil, newErrorf(KindInternal, "rendezvous: unknown channel class %d", class)
	}
}

func (d *Dispatcher) peerAddressFor(peer *types.Peer, cmd Command) transport.PeerAddress {
	addr := transport.PeerAddress{UUID: peer.UUID, IP: primaryAddress(peer)}
	if cmd.Channel() == ChannelReliable {
		addr.Port = peer.SystemPort
	} else if port, ok := peer.PortForCommandName(cmd.Name()); ok {
		addr.Port = port
	}
	return addr
}

func primaryAddress(peer *types.Peer) string {
	if len(peer.Addresses) == 0 {
		return ""
	}
	return peer.Addresses[0].String()
}

// sendSystem is the subscription manager's Deps.SendSystem hook:
// _sub/_unsub/_disc always ride the reliable system channel at the
// peer's system port, regardless of the target command's own channel
// class (spec.md §4.8).
func (d *Dispatcher) sendSystem(peer *types.Peer, method string, args interface{}, cb types.ResponseCallback) {
	addr := transport.PeerAddress{UUID: peer.UUID, IP: primaryAddress(peer), Port: peer.SystemPort}
	_ = d.reliable.Send(method, args, addr, false, cb)
}

// sendHeartbeat is discovery's Deps.SendHeartbeat hook (spec.md §4.4
// step 5, §4.8 _hb).
func (d *Dispatcher) sendHeartbeat(peer *types.Peer, cb func(err error)) {
	addr := transport.PeerAddress{UUID: peer.UUID, IP: primaryAddress(peer), Port: peer.SystemPort}
	args := &systemcmd.HeartbeatArgs{UUID: d.local.UUID}
	_ = d.reliable.Send(systemcmd.NameHeartbeat, args, addr, false, func(_ interface{}, err error) { cb(err) })
}

func (d *Dispatcher) lookupPublishedPS(name string) (*types.PublishSubscribeCommand, bool) {
	named, ok := d.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	ps, ok := named.(*types.PublishSubscribeCommand)
	return ps, ok
}

// onCapabilitiesChanged is the registry's onChange hook: every
// publish/unpublish of a non-system command snapshots the new
// capability set onto the local peer and republishes mDNS TXT
// (spec.md §2 control flow).
func (d *Dispatcher) onCapabilitiesChanged() {
	d.local.SetCapabilities(d.registry.PublishedNames())
	if err := d.disc.Republish(); err != nil {
		d.log.Warnf("rendezvous: failed republishing mDNS TXT: %v", err)
	}
}

// onPeerLifecycleChange adapts the unfiltered discovery registration
// into the three ConnectorDelegate peer-lifecycle callbacks.
func (d *Dispatcher) onPeerLifecycleChange(kind discovery.ChangeKind, peer *types.Peer) {
	d.notify(func() {
		switch kind {
		case discovery.ChangeFound:
			d.delegate.DidAddPeer(peer)
		case discovery.ChangeUpdate:
			d.delegate.DidUpdatePeer(peer)
		case discovery.ChangeRemove:
			d.delegate.WillRemovePeer(peer)
		}
	})
}

// onChannelFail is every channel's FailureReporter: a failure with no
// waiting caller is reported to the connector delegate, never thrown
// into a receive-handler (spec.md §7).
func (d *Dispatcher) onChannelFail(kind string, err error) {
	d.notify(func() { d.delegate.DidFailWithError(mapFailureKind(kind), err) })
}

func mapFailureKind(kind string) Kind {
	switch kind {
	case "CHANNEL_BIND_FAILED":
		return KindChannelBindFailed
	case "FRAMING_TOO_LARGE":
		return KindFramingTooLarge
	case "DECODE_FAILED":
		return KindDecodeFailed
	case "CONNECTION_CLOSED":
		return KindConnectionClosed
	default:
		return KindInternal
	}
}

// mapTransportErr recognizes the transport package's exported
// sentinels (timeout, connection closed) and its RemoteError (a failed
// response's wire-carried Code) and translates them into a
// Kind-carrying *Error so rendezvous.KindOf() reports what spec.md §7
// and §8 promise instead of always KindInternal. Any other error
// (including nil) passes through unchanged.
func mapTransportErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return newError(KindTimeout, err)
	case errors.Is(err, transport.ErrConnectionClosed):
		return newError(KindConnectionClosed, err)
	}
	var remote *transport.RemoteError
	if errors.As(err, &remote) {
		return newError(kindFromCode(remote.Code), errors.New(remote.Message))
	}
	return err
}

// mapSubscriptionErr translates the subscription package's sentinels
// into the matching root Kind sentinel/Error (spec.md §7), falling
// back to mapTransportErr for an error that reached the completion
// callback without passing through one of those sentinels first (e.g.
// Disconnect's completion, which forwards SendSystem's raw error).
func mapSubscriptionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, subscription.ErrPeerUnknown):
		return ErrPeerUnknown
	case errors.Is(err, subscription.ErrPeerIncapable):
		return ErrPeerIncapable
	case errors.Is(err, subscription.ErrUnknownCommand):
		return ErrUnknownCommand
	case errors.Is(err, subscription.ErrSubscribeFailed):
		return newError(KindSubscribeFailed, err)
	case errors.Is(err, subscription.ErrUnsubscribeFailed):
		return newError(KindUnsubscribeFailed, err)
	default:
		return mapTransportErr(err)
	}
}

// requiresResolvedPeer reports whether name's handler dereferences the
// resolved sender peer rather than treating it as an opaque, possibly
// absent, argument. _sub/_unsub/_disc all forward peer straight into
// subscription.Manager methods that key off peer.UUID, so an
// unresolved sender (spec.md §4.6 step 2: "if absent → PEER_UNKNOWN")
// must be rejected before the handler runs instead of panicking on a
// nil dereference. _hb, _cap, _ann and ordinary user commands don't
// require this: _hb's handler reads the sender's UUID from its own
// arguments precisely because the peer may not be resolved yet on
// first contact (spec.md §4.4 step 5).
func requiresResolvedPeer(name string) bool {
	switch name {
	case systemcmd.NameSubscribe, systemcmd.NameUnsubscribe, systemcmd.NameDisconnect:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) notify(fn func()) {
	d.executor.Submit(fn)
}

func (d *Dispatcher) wrapCompletion(completion func(error)) func(error) {
	if completion == nil {
		return func(error) {}
	}
	return func(err error) { d.notify(func() { completion(mapSubscriptionErr(err)) }) }
}

func mapRegistryErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		return ErrDuplicateCommand
	case errors.Is(err, registry.ErrUnknown):
		return ErrUnknownCommand
	case errors.Is(err, registry.ErrReserved):
		return newError(KindDuplicateCommand, err)
	default:
		return err
	}
}

// dispatchInbound is every channel's Dispatch hook (spec.md §4.3):
// notifications (id == 0) are routed to an outgoing subscription's
// receive handler; everything else is routed to the matching
// registered command's handler, replying on the Executor.
func (d *Dispatcher) dispatchInbound(in transport.Inbound) {
	peer := d.resolveInboundPeer(in)

	if in.ResponseID == 0 {
		if peer != nil && d.subs.Deliver(peer, in.Method, func(target interface{}) error {
			return codec.DecodeArguments(in.Params, target)
		}) {
			return
		}
		d.log.Debugf("rendezvous: dropping orphaned push %q (peer resolved=%v)", in.Method, peer != nil)
		return
	}

	named, ok := d.registry.Lookup(in.Method)
	if !ok {
		if in.Respond != nil {
			in.Respond(nil, newErrorf(KindUnknownCommand, "rendezvous: unknown command %q", in.Method))
		}
		return
	}

	switch cmd := named.(type) {
	case *types.RequestResponseCommand:
		d.handleRequestResponse(cmd.Handler(), cmd.Name(), cmd.NewArguments(), in, peer)
	case *types.AnnounceCommand:
		d.handleRequestResponse(cmd.Handler(), cmd.Name(), cmd.NewArguments(), in, peer)
	default:
		if in.Respond != nil {
			in.Respond(nil, newErrorf(KindCommandError, "rendezvous: %q is not a request/response command", in.Method))
		}
	}
}

func (d *Dispatcher) handleRequestResponse(handler types.RequestHandler, name string, args interface{}, in transport.Inbound, peer *types.Peer) {
	if handler == nil {
		if in.Respond != nil {
			in.Respond(nil, newErrorf(KindCommandError, "rendezvous: no handler registered for %q", name))
		}
		return
	}
	if peer == nil && requiresResolvedPeer(name) {
		if in.Respond != nil {
			in.Respond(nil, ErrPeerUnknown)
		}
		return
	}
	if err := codec.DecodeArguments(in.Params, args); err != nil {
		d.onChannelFail("DECODE_FAILED", err)
		if in.Respond != nil {
			in.Respond(nil, newError(KindDecodeFailed, err))
		}
		return
	}

	d.notify(func() {
		result, err := handler(args, peer)
		if _, coded := err.(transport.CodedError); err != nil && !coded {
			err = newError(KindCommandError, err)
		}
		if in.Respond != nil {
			in.Respond(result, err)
		}
	})
}

// resolveInboundPeer identifies the sender of an inbound message:
// multicast already knows the sender's UUID directly (spec.md §4.3);
// reliable/unreliable traffic only carries a source address, resolved
// against discovery's peer table (spec.md §4.6 step 2).
func (d *Dispatcher) resolveInboundPeer(in transport.Inbound) *types.Peer {
	if in.From.UUID != "" {
		if p, ok := d.disc.PeerByUUID(in.From.UUID); ok {
			return p
		}
	}
	if in.From.IP != "" {
		if ip := net.ParseIP(in.From.IP); ip != nil {
			if p, ok := d.disc.PeerByAddress(ip); ok {
				return p
			}
		}
	}
	return nil
}
