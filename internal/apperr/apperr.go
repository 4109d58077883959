// Package apperr defines the error taxonomy shared by the session,
// voice and dispatcher layers. Every error that crosses a package
// boundary carries a Kind so callers can map it to behavior (retry,
// reject, HTTP status) without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	// KindInternal is the zero value: an unexpected failure.
	KindInternal Kind = iota

	// KindValidation marks malformed or missing input. Operations
	// failing validation never mutate state.
	KindValidation

	// KindAuth marks a rejected credential. Not retried.
	KindAuth

	// KindNotFound marks an unknown or disconnected account.
	KindNotFound

	// KindAlreadyExists marks a conflicting register for an account
	// that already holds a live session.
	KindAlreadyExists

	// KindTargetBusy marks an audio submission to a voice link that
	// already has an active playback cursor.
	KindTargetBusy

	// KindVoiceTimeout marks a voice handshake that did not complete
	// within its deadline. The session survives.
	KindVoiceTimeout

	// KindVoiceLinkClosed marks an operation against a voice link that
	// was torn down. The session survives.
	KindVoiceLinkClosed

	// KindTransport marks a transport-level disconnect. It is absorbed
	// by the session's reconnect loop and only surfaces to callers of
	// operations that required a connected session.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindTargetBusy:
		return "target_busy"
	case KindVoiceTimeout:
		return "voice_timeout"
	case KindVoiceLinkClosed:
		return "voice_link_closed"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New creates an Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}

	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from an error chain. Unclassified errors
// report KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}

	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
