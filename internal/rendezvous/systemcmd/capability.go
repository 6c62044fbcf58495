package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// CapabilityArgs is _cap's wire shape: empty, per spec.md §4.8.
type CapabilityArgs struct{}

// CapabilityResult carries the responder's currently published,
// non-system command names — used when a requester's cached TXT
// record might be stale (spec.md §4.8 "_cap... Query peer
// capabilities (used when TXT is stale)").
type CapabilityResult struct {
	Commands []string
}

// NewCapability builds the _cap command. published reports the
// current registry snapshot; the dispatcher wires it to
// registry.Registry.PublishedNames.
func NewCapability(published func() []string) *types.RequestResponseCommand {
	cmd := newSystemRR(NameCapability, func() interface{} { return &CapabilityArgs{} })
	cmd.SetHandler(func(args interface{}, peer *types.Peer) (interface{}, error) {
		return &CapabilityResult{Commands: published()}, nil
	})
	return cmd
}
