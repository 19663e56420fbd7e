// Package types defines the shared wire and domain types of the conductor:
// the verdict taxonomy, invocation stats/limits, the error kind taxonomy,
// problem revisions, and strategy factories.
package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a conductor-side error per the five disjoint roles:
// bad input configuration, a submitted program failing on its own terms,
// invoker infrastructure misbehaving, an internal invariant violation, or a
// wire framing/protocol-state violation.
type ErrorKind string

const (
	// ErrConfigurationFailure marks a bad problem package, bad strategy, or
	// an impossible dependency graph. Fatal to ingestion of that revision.
	ErrConfigurationFailure ErrorKind = "ConfigurationFailure"
	// ErrUserFailure marks a submitted program failing on its own terms
	// (compile error, wrong answer inference, etc).
	ErrUserFailure ErrorKind = "UserFailure"
	// ErrInvokerFailure marks execution infrastructure on an invoker
	// misbehaving. The submission may be re-dispatched.
	ErrInvokerFailure ErrorKind = "InvokerFailure"
	// ErrConductorFailure marks an internal invariant violation, fatal to
	// the containing session.
	ErrConductorFailure ErrorKind = "ConductorFailure"
	// ErrCommunicationError marks wire framing/decode/protocol-state
	// violations. The connection is terminated.
	ErrCommunicationError ErrorKind = "CommunicationError"
)

// Error is the conductor's closed error taxonomy. It wraps an underlying
// cause while tagging it with one of the five kinds above, mirroring the
// original Rust `errors::Error` enum. Tagged snake_case like every other
// wire/view type in the tree; Err is excluded from encoding since a bare
// `error` interface cannot round-trip through msgpack/JSON reflection — only
// Kind and Message cross the wire (wire.NotifySubmissionError,
// wire.CompilationResult).
type Error struct {
	Kind    ErrorKind `msgpack:"kind" json:"kind"`
	Message string    `msgpack:"message" json:"message"`
	Err     error     `msgpack:"-" json:"-"`
}

// NewError creates a classified Error with no wrapped cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a classified Error wrapping an underlying cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind, so callers can
// use errors.Is(err, &types.Error{Kind: types.ErrConfigurationFailure}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// IsKind reports whether err is a *types.Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ConfigurationFailure is a convenience constructor for the
// ConfigurationFailure error kind.
func ConfigurationFailure(format string, args ...any) *Error {
	return NewError(ErrConfigurationFailure, format, args...)
}

// WrapConfigurationFailure wraps err as a ConfigurationFailure.
func WrapConfigurationFailure(err error, format string, args ...any) *Error {
	return WrapError(ErrConfigurationFailure, err, format, args...)
}

// CommunicationError is a convenience constructor for the
// CommunicationError error kind.
func CommunicationError(format string, args ...any) *Error {
	return NewError(ErrCommunicationError, format, args...)
}

// ConductorFailure is a convenience constructor for the ConductorFailure
// error kind.
func ConductorFailure(format string, args ...any) *Error {
	return NewError(ErrConductorFailure, format, args...)
}
