package systemcmd

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// NewAnnounce builds the abstract _ann reverse-discovery hook
// (spec.md §4.8): a would-be subscriber advertises its interest to a
// peer ahead of time, independent of mDNS. Argument schema and
// handler are entirely a consumer concern — the core only ships the
// envelope plumbing and the reserved name (spec.md §9 Open Question,
// resolved by exposing one delegate surface rather than the source's
// duplicated connector/threeMF-prefixed protocol pair).
func NewAnnounce(argsFactory func() interface{}) *types.AnnounceCommand {
	return types.NewAnnounceCommand(NameAnnounce, argsFactory)
}
