// Package apperr defines the error taxonomy shared by all services.
// Services return *Error values; the HTTP layer maps Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// Internal is the default for unexpected failures.
	Internal Kind = iota
	// Unauthenticated means a missing, malformed, or unknown API key.
	Unauthenticated
	// Forbidden means the caller is authenticated but lacks the required
	// role or participant status.
	Forbidden
	// NotFound means the target entity is absent or not visible to the caller.
	NotFound
	// Conflict means a uniqueness violation (duplicate handle, already a
	// member, already reacted, already blocked).
	Conflict
	// Invalid means malformed input rejected at the boundary.
	Invalid
	// PreconditionFailed means a state machine refused the transition
	// (already claimed, deleteGroup lock, role-hierarchy guard).
	PreconditionFailed
	// ExternalUnavailable means the verification provider is down or timed out.
	ExternalUnavailable
)

// Error carries a Kind, a single-sentence message, and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-visible message for an error chain.
// Internal errors are masked; their detail stays in the logs.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "internal server error"
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Invalid:
		return http.StatusBadRequest
	case PreconditionFailed:
		return http.StatusPreconditionFailed
	case ExternalUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
