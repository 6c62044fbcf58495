package discovery

import (
	"context"
	"net"

	"github.com/jabolina/rendezvous/internal/rendezvous/types"
	"github.com/libp2p/zeroconf/v2"
)

// resolvedService is the neutral shape grace.go's handleEntry works
// with, decoupling the rest of the package from zeroconf's own entry
// type. withdrawn approximates a goodbye packet: zeroconf surfaces a
// withdrawn service as an entry with no resolved addresses.
type resolvedService struct {
	txt       []string
	hostName  string
	domain    string
	addresses []net.IP
	withdrawn bool
}

type mdnsServer struct {
	server *zeroconf.Server
}

// newMDNSServer publishes the local peer's service instance with its
// TXT record (spec.md §4.4 "On start: publishes one service instance
// ... TXT = encoded peer state").
func newMDNSServer(local *types.Peer, serviceType, domain string) (*mdnsServer, error) {
	instance := local.Name
	if instance == "" {
		instance = local.UUID
	}
	server, err := zeroconf.Register(instance, serviceType, domain, local.SystemPort, local.EncodeTXT(), nil)
	if err != nil {
		return nil, err
	}
	return &mdnsServer{server: server}, nil
}

func (s *mdnsServer) shutdown() {
	s.server.Shutdown()
}

type mdnsBrowser struct{}

// newMDNSBrowser starts a background browse for serviceType/domain,
// invoking onEntry for every resolved (or withdrawn) instance until
// ctx is cancelled (spec.md §4.4 "Starts a browser for the same
// service type").
func newMDNSBrowser(ctx context.Context, serviceType, domain string, onEntry func(resolvedService)) (*mdnsBrowser, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := resolver.Browse(ctx, serviceType, domain, entries); err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
				addrs = append(addrs, entry.AddrIPv4...)
				addrs = append(addrs, entry.AddrIPv6...)
				onEntry(resolvedService{
					txt:       entry.Text,
					hostName:  entry.HostName,
					domain:    entry.Domain,
					addresses: addrs,
					withdrawn: len(addrs) == 0,
				})
			}
		}
	}()

	return &mdnsBrowser{}, nil
}
