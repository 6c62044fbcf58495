package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// HeartbeatArgs is _hb's wire shape (spec.md §4.8): the sender's UUID,
// carried even though the connection's source address usually already
// identifies the peer, since a fresh connection may not be cached yet.
type HeartbeatArgs struct {
	UUID string
}

// heartbeatNotifier is the discovery layer's liveness hook, kept as a
// narrow interface so this package doesn't need to import discovery
// just to call one method.
type heartbeatNotifier interface {
	NoteHeartbeatReceived(uuid string)
}

// NewHeartbeat builds the _hb command. Answering is unconditional —
// any inbound heartbeat refreshes the sender's liveness timer if it's
// a peer we've already resolved (spec.md §4.4 step 5).
func NewHeartbeat(disc heartbeatNotifier) *types.RequestResponseCommand {
	cmd := newSystemRR(NameHeartbeat, func() interface{} { return &HeartbeatArgs{} })
	cmd.SetHandler(func(args interface{}, peer *types.Peer) (interface{}, error) {
		if hb, ok := args.(*HeartbeatArgs); ok && hb.UUID != "" {
			disc.NoteHeartbeatReceived(hb.UUID)
		}
		return struct{}{}, nil
	})
	return cmd
}
