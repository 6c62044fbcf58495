// Package systemcmd implements the six system commands from spec.md
// §4.8: _hb, _sub, _unsub, _disc, _cap and the abstract _ann. Each is
// a *types.RequestResponseCommand (or, for _ann, *types.AnnounceCommand)
// constructed here and registered by the dispatcher via
// registry.PublishSystem, bypassing the usual "_"-prefix reservation
// that blocks user code from publishing these same names.
package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// Names of the six system commands, exported so the dispatcher and
// tests can reference them without repeating string literals.
const (
	NameHeartbeat   = "_hb"
	NameSubscribe   = "_sub"
	NameUnsubscribe = "_unsub"
	NameDisconnect  = "_disc"
	NameCapability  = "_cap"
	NameAnnounce    = "_ann"
)

// newSystemRR builds a reliable-channel R+R command flagged as
// system, the shape shared by every command but _ann.
func newSystemRR(name string, factory func() interface{}) *types.RequestResponseCommand {
	cmd := types.NewRequestResponseCommand(name, types.ChannelReliable, factory)
	cmd.SystemValue = true
	return cmd
}
