package rendezvous

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// Peer is re-exported from internal/rendezvous/types so both the
// public facade and the internal subscription/discovery/systemcmd
// packages share one definition without a root↔internal import cycle
// (the teacher keeps the same split: pkg/mcast/types has no
// dependents, pkg/mcast/core and pkg/mcast both import it).
type Peer = types.Peer

const SystemCommandName = types.SystemCommandName

var NewLocalPeer = types.NewLocalPeer
