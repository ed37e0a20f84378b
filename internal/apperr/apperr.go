// Package apperr defines the kind-tagged error values shared by the domain
// services and mapped to HTTP status codes by the transport layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure. The transport layer maps kinds to HTTP
// status codes; services compare kinds to branch on failure causes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimit
	KindDatabase
)

// Error is a domain failure with a kind, a caller-safe message, and an
// optional wrapped cause. The message is what the transport layer exposes;
// the cause stays server-side.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so errors.Is(err, apperr.Authentication("x"))
// matches any authentication error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Validation returns a KindValidation error (malformed or missing input).
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Authentication returns a KindAuthentication error (invalid, expired, or
// missing credentials).
func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// Authorization returns a KindAuthorization error (authenticated but not
// allowed).
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFound returns a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict returns a KindConflict error (duplicate resource).
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimit returns a KindRateLimit error.
func RateLimit(message string) *Error {
	return &Error{Kind: KindRateLimit, Message: message}
}

// Database wraps an underlying store failure as KindDatabase so callers can
// distinguish infrastructure failure from policy rejection.
func Database(message string, err error) *Error {
	return &Error{Kind: KindDatabase, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode returns the HTTP status for err's kind. Unknown errors map to
// 500 and must not leak their message past the boundary.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-safe message for err. Errors without a
// kind are reported as a generic internal failure.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
