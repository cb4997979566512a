// Package domainerrors defines the coded error type returned across the
// service boundary. Stores return sentinel errors; services wrap them here so
// the transport layer can map each code to a status without inspecting
// internals.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for the caller.
type Code string

const (
	// CodeNotFound: event or registration id does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidState: the entity exists but rejects the transition
	// (unpublished event, past start time, double cancel, early check-in).
	CodeInvalidState Code = "invalid_state"
	// CodeConflict: a schedule overlap was detected. Not a hard failure; the
	// caller resolves it by force-registering or picking an alternative.
	CodeConflict Code = "conflict"
	// CodeCapacityRace: admission lost a race during force-register
	// re-verification; the event sold out while the user was deciding.
	CodeCapacityRace Code = "capacity_race"
	// CodeUnauthorized: actor does not own the registration.
	CodeUnauthorized Code = "unauthorized"
	// CodeBadRequest: malformed or missing input.
	CodeBadRequest Code = "bad_request"
	// CodeUnavailable: a bounded lock wait timed out; safe to retry.
	CodeUnavailable Code = "unavailable"
	// CodeInternal: unexpected infrastructure failure.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is/errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for errors that never passed through this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from an error chain, or empty when the error
// is uncoded.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
