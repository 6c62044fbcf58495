package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// DisconnectArgs is _disc's wire shape (spec.md §4.8); mirrors
// subscription.unsubArgs (same field set, reused purpose: a list of
// command names).
type DisconnectArgs struct {
	Commands []string
}

type disconnectHandler interface {
	HandleDisconnectPush(peer *types.Peer, names []string)
}

// NewDisconnect builds the _disc command: publisher-initiated
// teardown, so the subscriber side only needs to drop its local
// bookkeeping, no further network traffic (spec.md §4.6 disconnect).
func NewDisconnect(mgr disconnectHandler) *types.RequestResponseCommand {
	cmd := newSystemRR(NameDisconnect, func() interface{} { return &DisconnectArgs{} })
	cmd.SetHandler(func(args interface{}, peer *types.Peer) (interface{}, error) {
		a := args.(*DisconnectArgs)
		mgr.HandleDisconnectPush(peer, a.Commands)
		return struct{}{}, nil
	})
	return cmd
}
