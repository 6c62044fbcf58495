package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// UnsubscribeArgs is _unsub's wire shape (spec.md §4.8); mirrors
// subscription.unsubArgs by field name for the same reason
// SubscribeArgs mirrors subArgs.
type UnsubscribeArgs struct {
	Commands []string
}

type unsubscribeHandler interface {
	HandleUnsubscribeRequest(peer *types.Peer, names []string) (interface{}, error)
}

// NewUnsubscribe builds the _unsub command (spec.md §4.6 unsubscribe,
// publisher side: "remove subscriber; if that was the last
// subscriber, call stop()").
func NewUnsubscribe(mgr unsubscribeHandler) *types.RequestResponseCommand {
	cmd := newSystemRR(NameUnsubscribe, func() interface{} { return &UnsubscribeArgs{} })
	cmd.SetHandler(func(args interface{}, peer *types.Peer) (interface{}, error) {
		a := args.(*UnsubscribeArgs)
		return mgr.HandleUnsubscribeRequest(peer, a.Commands)
	})
	return cmd
}
