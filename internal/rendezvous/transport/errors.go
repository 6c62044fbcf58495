package transport

import "errors"

// ErrTimeout and ErrConnectionClosed are the sentinels pending.go and
// reliable.go wrap (via fmt.Errorf's %w) into the errors handed to a
// Send responseCb. transport cannot depend on the root rendezvous
// package (it's the other way around), so these stay package-scoped;
// the dispatcher recognizes them with errors.Is and reconstructs the
// matching *rendezvous.Error Kind (spec.md §7, §8 boundary behaviors).
var (
	ErrTimeout          = errors.New("transport: deadline exceeded")
	ErrConnectionClosed = errors.New("transport: connection closed")
)

// CodedError is implemented by a handler's returned error when it
// wants its failure code to survive the round trip over the wire
// (spec.md §6 "response... error: {code, message}"). *rendezvous.Error
// implements this structurally (Code() returns int(Kind)) without
// transport needing to import the root package.
type CodedError interface {
	error
	Code() int
}

// RemoteError is what a Send responseCb receives when the remote
// side's handler answered with an error: the numeric code the remote
// dispatcher attached via CodedError, carried back so the local
// dispatcher can reconstruct a Kind-carrying error instead of a bare
// string (spec.md §7).
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string { return e.Message }
