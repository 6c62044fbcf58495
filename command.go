package rendezvous

import "github.com/jabolina/rendezvous/internal/rendezvous/types"

// Command and its variants are re-exported from internal/rendezvous/types
// for the same reason Peer is: internal packages (subscription,
// discovery, systemcmd) need the concrete type without importing the
// root package.
type (
	ChannelClass            = types.ChannelClass
	Pattern                 = types.Pattern
	ResponseCallback         = types.ResponseCallback
	ReceiveHandler           = types.ReceiveHandler
	RequestHandler           = types.RequestHandler
	StartFunc                = types.StartFunc
	StopFunc                 = types.StopFunc
	Command                  = types.Command
	RequestResponseCommand   = types.RequestResponseCommand
	PublishSubscribeCommand  = types.PublishSubscribeCommand
	AnnounceCommand          = types.AnnounceCommand
)

const (
	ChannelReliable   = types.ChannelReliable
	ChannelUnreliable = types.ChannelUnreliable
	ChannelMulticast  = types.ChannelMulticast

	PatternRequestResponse  = types.PatternRequestResponse
	PatternPublishSubscribe = types.PatternPublishSubscribe
)

var (
	NewRequestResponseCommand  = types.NewRequestResponseCommand
	NewPublishSubscribeCommand = types.NewPublishSubscribeCommand
	NewAnnounceCommand         = types.NewAnnounceCommand
	IsSystemCommandName        = types.IsSystemCommandName
)
