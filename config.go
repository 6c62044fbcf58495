package rendezvous

import (
	"time"

	"github.com/jabolina/rendezvous/internal/rendezvous/logging"
)

// Default tuning knobs. Design notes flag both the multicast suppression
// window and the heartbeat grace period as values that should be
// configuration knobs rather than baked-in constants — they're exposed
// on Config with these as defaults.
const (
	DefaultHeartbeatGrace    = 120 * time.Second
	DefaultRequestTimeout    = 60 * time.Second
	DefaultMulticastDedupTTL = 1 * time.Second
	DefaultServiceType       = "_rendezvous._tcp"
	DefaultServiceDomain     = "local."
	DefaultProtocolIdentifer = "rendezvous,1"
	DefaultFramingCapRR      = 16 << 20 // 16 MiB, R+R header supports bigger payloads
	DefaultFramingCapPS      = 1 << 20  // 1 MiB, P+S header is the smaller one
)

// ConfigurationDelegate is the pluggable surface spec.md §6 describes:
// a peer can be asked for its service domain/type, protocol identity
// and multicast coordinates. It offers no channel or codec selection:
// the channel comes from each command's Channel() and the codec is
// fixed.
// Config implements it directly so most consumers never need their own.
type ConfigurationDelegate interface {
	ServiceDomain() string
	ServiceType() string
	ProtocolIdentifier() string
	MulticastGroup() string
	MulticastPort() int
}

// Config is the facade construction parameter, following the teacher's
// BaseConfiguration/DefaultConfiguration(name) convention.
type Config struct {
	// Name is a human-readable instance name advertised over mDNS.
	Name string

	// ServiceDomain and ServiceType drive mDNS/DNS-SD publication and
	// browsing (spec.md §6).
	ServiceDomainValue string
	ServiceTypeValue   string

	// ProtocolIdentifierValue is the "name,version" string peers compare
	// before trusting each other's TXT records (spec.md §4.4 step 2).
	ProtocolIdentifierValue string

	// SystemPort is the port the system channel binds to; 0 means let
	// the OS choose.
	SystemPort int

	// MulticastGroupValue names the group the multicast channel joins.
	// MulticastPortValue is passed to the multicast channel's Start,
	// which binds no socket of its own and reports the value back
	// unchanged.
	MulticastGroupValue string
	MulticastPortValue  int

	// HeartbeatGrace is how long a withdrawn peer is kept in the grace
	// state before being removed (spec.md §4.4).
	HeartbeatGrace time.Duration

	// RequestTimeout is the default R+R pending-callback deadline
	// (spec.md §5).
	RequestTimeout time.Duration

	// MulticastDedupTTL is the multicast receive de-duplication window
	// (spec.md §4.3).
	MulticastDedupTTL time.Duration

	// FramingCapRR is the reliable-stream frame length cap (spec.md
	// §4.1). The reliable channel applies it to every frame, R+R and
	// P+S alike; FramingCapPS is carried on Config but no channel
	// reads it.
	FramingCapRR int
	FramingCapPS int

	// Logger is used throughout the core; defaults to logging.NewDefaultLogger().
	Logger logging.Logger
}

// DefaultConfig builds a Config with the name advertised over mDNS and
// every other field set to its documented default, mirroring the
// teacher's DefaultConfiguration(name) constructor.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                    name,
		ServiceDomainValue:      DefaultServiceDomain,
		ServiceTypeValue:        DefaultServiceType,
		ProtocolIdentifierValue: DefaultProtocolIdentifer,
		SystemPort:              0,
		MulticastGroupValue:     "239.17.17.17",
		MulticastPortValue:      21727,
		HeartbeatGrace:          DefaultHeartbeatGrace,
		RequestTimeout:          DefaultRequestTimeout,
		MulticastDedupTTL:       DefaultMulticastDedupTTL,
		FramingCapRR:            DefaultFramingCapRR,
		FramingCapPS:            DefaultFramingCapPS,
		Logger:                  logging.NewDefaultLogger(),
	}
}

func (c *Config) ServiceDomain() string       { return c.ServiceDomainValue }
func (c *Config) ServiceType() string         { return c.ServiceTypeValue }
func (c *Config) ProtocolIdentifier() string  { return c.ProtocolIdentifierValue }
func (c *Config) MulticastGroup() string      { return c.MulticastGroupValue }
func (c *Config) MulticastPort() int          { return c.MulticastPortValue }
