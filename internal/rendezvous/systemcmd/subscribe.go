package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// SubscribeArgs is _sub's wire shape (spec.md §4.8). Field names
// mirror subscription.subArgs exactly (CommandName, Configuration,
// Port): the codec's alphabetical-by-field-name ordering law means
// two structs with the same field set encode/decode compatibly
// without either package needing to import the other's type.
type SubscribeArgs struct {
	CommandName   string
	Configuration interface{}
	Port          int
}

// subscribeHandler is the subset of subscription.Manager this command
// needs, kept narrow to avoid a direct package dependency beyond what
// NewSubscribe's caller already wires up.
type subscribeHandler interface {
	HandleSubscribeRequest(peer *types.Peer, commandName string, configuration interface{}, port int) (interface{}, error)
}

// NewSubscribe builds the _sub command (spec.md §4.6 "Receiving _sub
// (publisher side)").
func NewSubscribe(mgr subscribeHandler) *types.RequestResponseCommand {
	cmd := newSystemRR(NameSubscribe, func() interface{} { return &SubscribeArgs{} })
	cmd.SetHandler(func(args interface{}, peer *types.Peer) (interface{}, error) {
		a := args.(*SubscribeArgs)
		return mgr.HandleSubscribeRequest(peer, a.CommandName, a.Configuration, a.Port)
	})
	return cmd
}
