// Package apperr defines the error taxonomy shared by all services.
// Every failure a caller can act on carries a stable machine-readable
// kind; handlers translate kinds to HTTP status codes in one place and
// never leak upstream detail to the public caller.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation        Kind = "validation_error"
	Authorization     Kind = "authorization_error"
	NotFound          Kind = "not_found"
	InvalidState      Kind = "invalid_state"
	InvalidTransition Kind = "invalid_transition"
	RateLimited       Kind = "rate_limit_exceeded"
	InvalidImage      Kind = "invalid_image"
	Upstream          Kind = "upstream_error"
)

type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is set on rate-limit denials: seconds until the window resets.
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with the given kind and user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or Upstream when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Upstream
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Status maps an error kind to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case Validation, InvalidImage:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidState, InvalidTransition:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// Message returns the user-facing message for err. Non-taxonomy errors
// collapse to a generic message so storage/upstream detail is never exposed.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "An unexpected error occurred"
}
