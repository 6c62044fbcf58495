package types

import (
	"sync"

	"github.com/jabolina/rendezvous/internal/rendezvous/codec"
)

// ChannelClass selects which transport a command's traffic rides on
// (spec.md §3).
type ChannelClass int

const (
	ChannelReliable ChannelClass = iota
	ChannelUnreliable
	ChannelMulticast
)

// Pattern distinguishes the two command shapes spec.md §3 defines:
// request/response and publish/subscribe. Abstract command classes map
// onto a tagged variant over this enum plus a payload, rather than a
// class hierarchy (spec.md §9).
type Pattern int

const (
	PatternRequestResponse Pattern = iota
	PatternPublishSubscribe
)

// ResponseCallback is shared with the transport layer via the codec
// package, the lowest layer that needs it, to avoid redefining an
// identical function type across an import boundary.
type ResponseCallback = codec.ResponseCallback

// ReceiveHandler is invoked for every push delivered to a publish/
// subscribe subscription.
type ReceiveHandler func(args interface{}, peer *Peer)

// RequestHandler answers an inbound request/response call. It returns
// the result to send back, or an error to encode as the response's
// error field (spec.md §7 COMMAND_ERROR).
type RequestHandler func(args interface{}, peer *Peer) (interface{}, error)

// StartFunc/StopFunc drive a publisher's lifecycle transitions
// (spec.md §4.6): start is awaited on the first subscriber, stop is
// invoked once the last one leaves.
type StartFunc func(completion func(error))
type StopFunc func(completion func())

// Command is the common surface every command name registered with
// the dispatcher implements. Concrete commands are values satisfying
// this interface, not subclasses of an abstract base (spec.md §9).
type Command interface {
	// Name is the short unique command name; the "_" prefix is
	// reserved for system commands (spec.md §3).
	Name() string

	// Pattern reports whether this is R+R or P+S.
	Pattern() Pattern

	// Channel reports which transport carries this command's traffic.
	Channel() ChannelClass

	// IsSystem reports whether this is one of the six system commands.
	IsSystem() bool

	// NewArguments allocates a zero-value argument object the codec
	// can decode into for this command.
	NewArguments() interface{}
}

// RequestResponseCommand is the R+R variant: a caller expects exactly
// one response per request id.
type RequestResponseCommand struct {
	NameValue    string
	ChannelValue ChannelClass
	SystemValue  bool
	ArgsFactory  func() interface{}

	mu      sync.RWMutex
	handler RequestHandler
}

func NewRequestResponseCommand(name string, channel ChannelClass, argsFactory func() interface{}) *RequestResponseCommand {
	return &RequestResponseCommand{NameValue: name, ChannelValue: channel, ArgsFactory: argsFactory}
}

func (c *RequestResponseCommand) Name() string         { return c.NameValue }
func (c *RequestResponseCommand) Pattern() Pattern      { return PatternRequestResponse }
func (c *RequestResponseCommand) Channel() ChannelClass { return c.ChannelValue }
func (c *RequestResponseCommand) IsSystem() bool        { return c.SystemValue }
func (c *RequestResponseCommand) NewArguments() interface{} {
	if c.ArgsFactory == nil {
		return &map[string]interface{}{}
	}
	return c.ArgsFactory()
}

// SetHandler installs the function invoked for every inbound request
// for this command.
func (c *RequestResponseCommand) SetHandler(h RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *RequestResponseCommand) Handler() RequestHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// PublishSubscribeCommand is the P+S variant: subscribers receive a
// stream of pushes from a publisher (spec.md §3).
type PublishSubscribeCommand struct {
	NameValue    string
	ChannelValue ChannelClass
	ArgsFactory  func() interface{}

	// IsReliable/IsMulticast mirror the underlying channel choice;
	// kept as separate fields per spec.md §3 since a P+S command
	// declares them explicitly.
	IsReliable  bool
	IsMulticast bool

	// IsRealTime disables small-write coalescing on the reliable
	// channel for this command's traffic (spec.md §4.3).
	IsRealTime bool

	// RestartOnConfigurationUpdate controls whether a changed _sub
	// configuration causes the publisher to stop/apply/restart
	// (spec.md §4.6).
	RestartOnConfigurationUpdate bool

	// DefaultConfiguration seeds Configuration until a subscriber
	// supplies one.
	DefaultConfiguration interface{}

	mu            sync.RWMutex
	configuration interface{}
	subscribers   map[string]*subscriberEntry
	running       bool

	Start StartFunc
	Stop  StopFunc
}

type subscriberEntry struct {
	peer          *Peer
	udpPort       int
	configuration interface{}
}

func NewPublishSubscribeCommand(name string, channel ChannelClass) *PublishSubscribeCommand {
	return &PublishSubscribeCommand{
		NameValue:    name,
		ChannelValue: channel,
		subscribers:  map[string]*subscriberEntry{},
	}
}

func (c *PublishSubscribeCommand) Name() string         { return c.NameValue }
func (c *PublishSubscribeCommand) Pattern() Pattern      { return PatternPublishSubscribe }
func (c *PublishSubscribeCommand) Channel() ChannelClass { return c.ChannelValue }
func (c *PublishSubscribeCommand) IsSystem() bool        { return false }
func (c *PublishSubscribeCommand) NewArguments() interface{} {
	if c.ArgsFactory == nil {
		return &map[string]interface{}{}
	}
	return c.ArgsFactory()
}

// Running reports whether the publisher is currently started. Spec.md
// §8 invariant 2: running iff subscribers is non-empty.
func (c *PublishSubscribeCommand) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *PublishSubscribeCommand) Configuration() interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.configuration != nil {
		return c.configuration
	}
	return c.DefaultConfiguration
}

// SetConfiguration replaces the publisher's active configuration
// (spec.md §4.6 step 3).
func (c *PublishSubscribeCommand) SetConfiguration(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configuration = v
}

func (c *PublishSubscribeCommand) subscriberKey(peerUUID string) string {
	return peerUUID + "|" + c.NameValue
}

// AddSubscriber records a subscriber entry, returning true if it was
// the first subscriber (a start transition, spec.md §4.6). Exported
// for the subscription manager, which owns the _sub/_unsub handshake
// and decides when a publisher's start()/stop() fire.
func (c *PublishSubscribeCommand) AddSubscriber(peer *Peer, udpPort int, configuration interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasEmpty := len(c.subscribers) == 0
	c.subscribers[c.subscriberKey(peer.UUID)] = &subscriberEntry{peer: peer, udpPort: udpPort, configuration: configuration}
	if wasEmpty {
		c.running = true
	}
	return wasEmpty
}

// RemoveSubscriber removes a subscriber entry, returning true if that
// was the last subscriber (a stop transition, spec.md §4.6).
func (c *PublishSubscribeCommand) RemoveSubscriber(peerUUID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.subscriberKey(peerUUID)
	if _, ok := c.subscribers[key]; !ok {
		return false
	}
	delete(c.subscribers, key)
	if len(c.subscribers) == 0 {
		c.running = false
		return true
	}
	return false
}

func (c *PublishSubscribeCommand) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}

func (c *PublishSubscribeCommand) Subscribers() []*Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Peer, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		out = append(out, s.peer)
	}
	return out
}

// SubscriberPort reports the UDP port a given subscriber registered,
// if any (spec.md §3 subscriber-entry).
func (c *PublishSubscribeCommand) SubscriberPort(peerUUID string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subscribers[c.subscriberKey(peerUUID)]
	if !ok {
		return 0, false
	}
	return s.udpPort, true
}

// AnnounceCommand is the abstract reverse-discovery hook (spec.md
// §4.8): a would-be subscriber advertises its interest to a peer. The
// core ships only the envelope plumbing; concrete argument schemas are
// a consumer concern, same as any other command payload.
type AnnounceCommand struct {
	NameValue   string
	ArgsFactory func() interface{}

	mu      sync.RWMutex
	handler RequestHandler
}

func NewAnnounceCommand(name string, argsFactory func() interface{}) *AnnounceCommand {
	return &AnnounceCommand{NameValue: name, ArgsFactory: argsFactory}
}

func (c *AnnounceCommand) Name() string         { return c.NameValue }
func (c *AnnounceCommand) Pattern() Pattern      { return PatternRequestResponse }
func (c *AnnounceCommand) Channel() ChannelClass { return ChannelReliable }
func (c *AnnounceCommand) IsSystem() bool        { return true }
func (c *AnnounceCommand) NewArguments() interface{} {
	if c.ArgsFactory == nil {
		return &map[string]interface{}{}
	}
	return c.ArgsFactory()
}

func (c *AnnounceCommand) SetHandler(h RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *AnnounceCommand) Handler() RequestHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// IsSystemCommandName reports whether name is reserved for the system
// command suite (spec.md §8 invariant 5).
func IsSystemCommandName(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
