// Package subscription implements the bipartite subscription graph
// from spec.md §4.6: local subscribers tracking remote publishers
// (the outgoing table) and local publishers tracking their remote
// subscribers (each published command's own subscriber set), plus the
// start/stop lifecycle transitions and the heartbeat-driven teardown
// of subscriptions that outlive a peer's capabilities.
package subscription

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
	"github.com/jabolina/rendezvous/internal/rendezvous/systemcmd"
	"github.com/jabolina/rendezvous/internal/rendezvous/types"
)

// Sentinel errors mirror the registry package's convention; the
// dispatcher maps these onto *rendezvous.Error Kinds at the root.
var (
	ErrPeerUnknown       = fmt.Errorf("subscription: peer not visible")
	ErrPeerIncapable     = fmt.Errorf("subscription: command not in peer capabilities")
	ErrUnknownCommand    = fmt.Errorf("subscription: command not published")
	ErrSubscribeFailed   = fmt.Errorf("subscription: remote refused or failed to start publisher")
	ErrUnsubscribeFailed = fmt.Errorf("subscription: remote refused unsubscribe")
)

// Notifications are the subscription-manager delegate callbacks
// (spec.md §9: function-valued fields rather than an interface
// hierarchy). Any nil field is simply not invoked.
type Notifications struct {
	DidAddSubscription    func(peer *types.Peer, commandName string)
	DidRemoveSubscription func(peer *types.Peer, commandName string)
	DidAddSubscriber      func(peer *types.Peer, commandName string)
	DidRemoveSubscriber   func(peer *types.Peer, commandName string)
}

// Deps bundles the manager's collaborators, supplied by the
// dispatcher which alone knows how to look up peers/commands and
// reach the system channel.
type Deps struct {
	Log logging.Logger

	// LookupPeer resolves a peer by UUID, returning ok == false if the
	// peer is not currently visible (spec.md §4.6 step 1).
	LookupPeer func(uuid string) (*types.Peer, bool)

	// LookupPublished resolves a locally published P+S command by
	// name, for the publisher-side _sub/_unsub handlers.
	LookupPublished func(name string) (*types.PublishSubscribeCommand, bool)

	// SendSystem sends a request over the reliable system channel
	// (spec.md §4.8: _sub/_unsub/_disc always ride the system
	// channel, regardless of the target command's own channel class).
	SendSystem func(peer *types.Peer, method string, args interface{}, cb types.ResponseCallback)

	// LocalUnreliablePort reports the local UDP port a remote
	// publisher should push to when the subscribed command's channel
	// is unreliable (spec.md §4.6 step 3).
	LocalUnreliablePort func() int

	Notify Notifications
}

type outgoingKey struct {
	peerUUID string
	command  string
}

// outgoingSubscription is the local side's record of a subscription
// to a remote publisher (spec.md §3 "Subscription (local side)").
type outgoingSubscription struct {
	cmd           *types.PublishSubscribeCommand
	configuration interface{}
	receive       types.ReceiveHandler
}

// subArgs is the wire shape of _sub's arguments (spec.md §4.8).
type subArgs struct {
	CommandName   string      `json:"commandName"`
	Configuration interface{} `json:"configuration,omitempty"`
	Port          int         `json:"port,omitempty"`
}

// unsubArgs is shared by _unsub and _disc, both of which carry a list
// of command names (spec.md §4.8).
type unsubArgs struct {
	Commands []string `json:"commands"`
}

// Manager owns both subscription tables and drives the handshakes
// that create and destroy entries in them.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	outgoing map[outgoingKey]*outgoingSubscription
}

func New(deps Deps) *Manager {
	return &Manager{deps: deps, outgoing: map[outgoingKey]*outgoingSubscription{}}
}

// Subscribe implements spec.md §4.6 subscribe(commandClass,
// configuration, peer, receive, completion). cmd is the caller's own
// descriptor for the remote command — same name as the publisher's,
// used locally only to decode incoming push arguments.
func (m *Manager) Subscribe(cmd *types.PublishSubscribeCommand, configuration interface{}, peer *types.Peer, receive types.ReceiveHandler, completion func(error)) {
	live, ok := m.deps.LookupPeer(peer.UUID)
	if !ok {
		completion(ErrPeerUnknown)
		return
	}
	if live.HasCapability(cmd.Name()) {
		m.sendSubscribe(cmd, configuration, live, receive, completion)
		return
	}

	// The locally cached, TXT-derived capability snapshot may be
	// stale relative to a capability change that raced the last
	// didUpdatePeer: refresh it with _cap before failing
	// PEER_INCAPABLE (SPEC_FULL.md §11, refines this step of spec.md
	// §4.6 rather than replacing it).
	m.refreshCapabilities(live, func() {
		if !live.HasCapability(cmd.Name()) {
			completion(ErrPeerIncapable)
			return
		}
		m.sendSubscribe(cmd, configuration, live, receive, completion)
	})
}

func (m *Manager) sendSubscribe(cmd *types.PublishSubscribeCommand, configuration interface{}, live *types.Peer, receive types.ReceiveHandler, completion func(error)) {
	port := 0
	if cmd.Channel() == types.ChannelUnreliable && m.deps.LocalUnreliablePort != nil {
		port = m.deps.LocalUnreliablePort()
	}

	args := &subArgs{CommandName: cmd.Name(), Configuration: configuration, Port: port}
	m.deps.SendSystem(live, "_sub", args, func(_ interface{}, err error) {
		if err != nil {
			completion(fmt.Errorf("%w: %v", ErrSubscribeFailed, err))
			return
		}

		key := outgoingKey{peerUUID: live.UUID, command: cmd.Name()}
		m.mu.Lock()
		m.outgoing[key] = &outgoingSubscription{cmd: cmd, configuration: configuration, receive: receive}
		m.mu.Unlock()

		if m.deps.Notify.DidAddSubscription != nil {
			m.deps.Notify.DidAddSubscription(live, cmd.Name())
		}
		completion(nil)
	})
}

// refreshCapabilities queries peer's current capability set via _cap
// and applies it to the local record before calling then, regardless
// of whether the query succeeds (spec.md §4.8 "_cap... used when TXT
// is stale"). A failed or undecodable _cap response simply leaves the
// existing capability set in place, so the caller's recheck fails the
// same way it would have without the fallback.
func (m *Manager) refreshCapabilities(peer *types.Peer, then func()) {
	m.deps.SendSystem(peer, systemcmd.NameCapability, &systemcmd.CapabilityArgs{}, func(result interface{}, err error) {
		if err == nil {
			if names, ok := decodeCapabilityNames(result); ok {
				peer.SetCapabilities(names)
			}
		}
		then()
	})
}

// decodeCapabilityNames recovers the []string command list from a
// _cap response's generic, already-JSON-decoded result value (the
// wire Response.Result field is interface{}, so by the time it
// reaches a ResponseCallback it is a map[string]interface{}, not a
// systemcmd.CapabilityResult).
func decodeCapabilityNames(result interface{}) ([]string, bool) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, false
	}
	var res systemcmd.CapabilityResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	return res.Commands, true
}

// Unsubscribe implements spec.md §4.6 unsubscribe for a single command
// name.
func (m *Manager) Unsubscribe(commandName string, peer *types.Peer, completion func(error)) {
	m.unsubscribe([]string{commandName}, peer, completion)
}

// UnsubscribeAll tears down every outgoing subscription held at peer.
func (m *Manager) UnsubscribeAll(peer *types.Peer, completion func(error)) {
	m.mu.Lock()
	var names []string
	for key := range m.outgoing {
		if key.peerUUID == peer.UUID {
			names = append(names, key.command)
		}
	}
	m.mu.Unlock()

	if len(names) == 0 {
		completion(nil)
		return
	}
	m.unsubscribe(names, peer, completion)
}

func (m *Manager) unsubscribe(names []string, peer *types.Peer, completion func(error)) {
	m.deps.SendSystem(peer, "_unsub", &unsubArgs{Commands: names}, func(_ interface{}, err error) {
		if err != nil {
			completion(fmt.Errorf("%w: %v", ErrUnsubscribeFailed, err))
			return
		}
		for _, name := range names {
			m.removeOutgoing(peer, name)
		}
		completion(nil)
	})
}

func (m *Manager) removeOutgoing(peer *types.Peer, commandName string) {
	key := outgoingKey{peerUUID: peer.UUID, command: commandName}
	m.mu.Lock()
	_, existed := m.outgoing[key]
	delete(m.outgoing, key)
	m.mu.Unlock()
	if existed && m.deps.Notify.DidRemoveSubscription != nil {
		m.deps.Notify.DidRemoveSubscription(peer, commandName)
	}
}

// Deliver routes an inbound push from peer to the outgoing
// subscription's receive handler, decoding params via the locally
// held command descriptor (spec.md §2 control flow, last sentence).
// It reports false if there is no matching subscription, letting the
// caller decide how to log/ignore the orphaned push.
func (m *Manager) Deliver(peer *types.Peer, commandName string, decode func(target interface{}) error) bool {
	m.mu.Lock()
	sub, ok := m.outgoing[outgoingKey{peerUUID: peer.UUID, command: commandName}]
	m.mu.Unlock()
	if !ok {
		return false
	}

	args := sub.cmd.NewArguments()
	if err := decode(args); err != nil {
		m.deps.Log.Warnf("rendezvous: failed decoding push for %s from %s: %v", commandName, peer.UUID, err)
		return true
	}
	sub.receive(args, peer)
	return true
}

// HandleSubscribeRequest answers an inbound _sub (spec.md §4.6
// "Receiving _sub (publisher side)"). Takes plain fields rather than
// the wire subArgs type so systemcmd, which decodes the envelope, has
// no need to import this package's unexported wire types.
func (m *Manager) HandleSubscribeRequest(peer *types.Peer, commandName string, configuration interface{}, port int) (interface{}, error) {
	cmd, ok := m.deps.LookupPublished(commandName)
	if !ok {
		return nil, ErrUnknownCommand
	}

	if configuration != nil && cmd.RestartOnConfigurationUpdate && !configEqual(cmd.Configuration(), configuration) {
		wasRunning := cmd.Running()
		if wasRunning {
			awaitStop(cmd.Stop)
		}
		cmd.SetConfiguration(configuration)
		if wasRunning {
			if err := awaitStart(cmd.Start); err != nil {
				return nil, fmt.Errorf("%w: restart failed: %v", ErrSubscribeFailed, err)
			}
		}
	}

	wasEmpty := cmd.AddSubscriber(peer, port, configuration)
	if wasEmpty {
		if err := awaitStart(cmd.Start); err != nil {
			cmd.RemoveSubscriber(peer.UUID)
			return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
		}
	}

	if m.deps.Notify.DidAddSubscriber != nil {
		m.deps.Notify.DidAddSubscriber(peer, cmd.Name())
	}
	return struct{}{}, nil
}

// HandleUnsubscribeRequest answers an inbound _unsub: remove the
// subscriber entry from each named command, stopping the publisher if
// that was its last subscriber (spec.md §4.6).
func (m *Manager) HandleUnsubscribeRequest(peer *types.Peer, names []string) (interface{}, error) {
	for _, name := range names {
		cmd, ok := m.deps.LookupPublished(name)
		if !ok {
			continue
		}
		if cmd.RemoveSubscriber(peer.UUID) {
			awaitStop(cmd.Stop)
		}
		if m.deps.Notify.DidRemoveSubscriber != nil {
			m.deps.Notify.DidRemoveSubscriber(peer, name)
		}
	}
	return struct{}{}, nil
}

// HandleDisconnectPush answers an inbound _disc: the publisher
// initiated teardown, so only local bookkeeping is needed, no further
// network traffic (spec.md §4.6 disconnect).
func (m *Manager) HandleDisconnectPush(peer *types.Peer, names []string) {
	for _, name := range names {
		m.removeOutgoing(peer, name)
	}
}

// Disconnect implements the publisher-initiated teardown
// (spec.md §4.6 disconnect(commandName|*, peer, completion)): send
// _disc, then remove the local subscriber entry regardless of whether
// the remote acknowledges, since a dropped connection means the
// subscriber is gone anyway.
func (m *Manager) Disconnect(commandName string, peer *types.Peer, completion func(error)) {
	cmd, ok := m.deps.LookupPublished(commandName)
	if !ok {
		completion(ErrUnknownCommand)
		return
	}

	m.deps.SendSystem(peer, "_disc", &unsubArgs{Commands: []string{commandName}}, func(_ interface{}, err error) {
		if cmd.RemoveSubscriber(peer.UUID) {
			awaitStop(cmd.Stop)
		}
		if m.deps.Notify.DidRemoveSubscriber != nil {
			m.deps.Notify.DidRemoveSubscriber(peer, commandName)
		}
		completion(err)
	})
}

// OnPeerCapabilitiesChanged implements the heartbeat-driven
// consistency rule (spec.md §4.6 last paragraph): any outgoing
// subscription whose command dropped out of peer's capability set is
// torn down locally, no network traffic required.
func (m *Manager) OnPeerCapabilitiesChanged(peer *types.Peer) {
	m.mu.Lock()
	var stale []string
	for key := range m.outgoing {
		if key.peerUUID == peer.UUID && !peer.HasCapability(key.command) {
			stale = append(stale, key.command)
		}
	}
	m.mu.Unlock()

	for _, name := range stale {
		m.removeOutgoing(peer, name)
	}
}

// OnPeerRemoved drops every outgoing subscription held at peerUUID
// without any network traffic, mirroring OnPeerCapabilitiesChanged's
// no-traffic rationale: a removed peer is already gone.
func (m *Manager) OnPeerRemoved(peerUUID string) {
	m.mu.Lock()
	var stale []outgoingKey
	for key := range m.outgoing {
		if key.peerUUID == peerUUID {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(m.outgoing, key)
	}
	m.mu.Unlock()
}

// awaitStart bridges a completion-style StartFunc into a blocking
// call, used while answering an inbound _sub so the response can
// carry the outcome (spec.md §4.6: "start(completion) is awaited").
func awaitStart(start types.StartFunc) error {
	if start == nil {
		return nil
	}
	done := make(chan error, 1)
	start(func(err error) { done <- err })
	return <-done
}

func awaitStop(stop types.StopFunc) {
	if stop == nil {
		return
	}
	done := make(chan struct{})
	stop(func() { close(done) })
	<-done
}

// configEqual compares two configuration values by their JSON-normal
// form, since configuration is an opaque user-defined schema object
// (spec.md §3).
func configEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	na, okA := jsonNormal(a)
	nb, okB := jsonNormal(b)
	return okA && okB && na == nb
}

// jsonNormal marshals v, decodes it into generic JSON values and
// marshals that again, so equal data compare equal regardless of the
// concrete Go type holding it.
func jsonNormal(v interface{}) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", false
	}
	data, err = json.Marshal(generic)
	return string(data), err == nil
}
