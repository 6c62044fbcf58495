package rendezvous

import (
	"errors"
	"fmt"
)

// Kind classifies the failures the core can surface to user code.
// The kinds follow the grouping of the design notes (internal errors,
// socket failures, protocol failures, peer-state failures,
// subscription failures, timeouts), numbered consecutively from 0.
type Kind int

const (
	KindInternal Kind = iota
	KindChannelBindFailed
	KindConnectionClosed
	KindFramingTooLarge
	KindDecodeFailed
	KindPeerUnknown
	KindPeerIncapable
	KindSubscribeFailed
	KindUnsubscribeFailed
	KindTimeout
	KindDuplicateCommand
	KindUnknownCommand
	KindCommandError
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "INTERNAL"
	case KindChannelBindFailed:
		return "CHANNEL_BIND_FAILED"
	case KindConnectionClosed:
		return "CONNECTION_CLOSED"
	case KindFramingTooLarge:
		return "FRAMING_TOO_LARGE"
	case KindDecodeFailed:
		return "DECODE_FAILED"
	case KindPeerUnknown:
		return "PEER_UNKNOWN"
	case KindPeerIncapable:
		return "PEER_INCAPABLE"
	case KindSubscribeFailed:
		return "SUBSCRIBE_FAILED"
	case KindUnsubscribeFailed:
		return "UNSUBSCRIBE_FAILED"
	case KindTimeout:
		return "TIMEOUT"
	case KindDuplicateCommand:
		return "DUPLICATE_COMMAND"
	case KindUnknownCommand:
		return "UNKNOWN_COMMAND"
	case KindCommandError:
		return "COMMAND_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is the single carrier type for every failure the core reports
// to user code, pairing a Kind with the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code satisfies transport.CodedError: a response built from this
// Error carries its Kind across the wire as a plain int (spec.md §6
// "error: {code, message}"), letting the receiving dispatcher
// reconstruct the matching Kind via kindFromCode instead of losing it
// to a flat error string.
func (e *Error) Code() int {
	return int(e.Kind)
}

// kindFromCode reconstructs a Kind from a wire-carried Code (see
// (*Error).Code), falling back to KindInternal for any value this
// build doesn't recognize — e.g. a future Kind a remote peer running
// a newer version sent.
func kindFromCode(code int) Kind {
	k := Kind(code)
	if k < KindInternal || k > KindCommandError {
		return KindInternal
	}
	return k
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newErrorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error. It returns KindInternal for any other error, including nil.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrPeerUnknown       = newError(KindPeerUnknown, errors.New("peer not in the visible set"))
	ErrPeerIncapable     = newError(KindPeerIncapable, errors.New("command not in peer capabilities"))
	ErrDuplicateCommand  = newError(KindDuplicateCommand, errors.New("command name already published"))
	ErrUnknownCommand    = newError(KindUnknownCommand, errors.New("command name not published"))
	ErrTimeout           = newError(KindTimeout, errors.New("pending response deadline passed"))
	ErrConnectionClosed  = newError(KindConnectionClosed, errors.New("connection closed"))
	ErrFramingTooLarge   = newError(KindFramingTooLarge, errors.New("declared frame length exceeds cap"))
	ErrChannelBindFailed = newError(KindChannelBindFailed, errors.New("channel failed to bind"))
)
