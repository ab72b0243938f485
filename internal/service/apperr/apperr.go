// Package apperr defines the error kinds raised by the service layer.
//
// Errors are created where a problem is detected and travel unchanged up to the
// transport boundary, which maps the kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
)

// unauthorizedMessage is shared by every credential failure so callers cannot tell
// which check rejected them.
const unauthorizedMessage = "unauthorized"

// Error is a classified application error.
type Error struct {
	Kind     Kind
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}

	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}

	return false
}

// Sentinels usable with errors.Is to test only the kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrConflict     = &Error{Kind: KindConflict}
)

// NotFound reports a missing entity, naming its id.
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Message:  fmt.Sprintf("%s %q not found", resource, id),
		Metadata: map[string]string{"resource": resource, "id": id},
	}
}

// Validation reports malformed input.
func Validation(format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Unauthorized reports a credential failure. The message is always generic; the
// cause is kept for server-side logs only.
func Unauthorized(cause error) *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Message: unauthorizedMessage,
		Cause:   cause,
	}
}

// Conflict reports a duplicate resource.
func Conflict(format string, args ...any) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// PublicMessage returns the message that is safe to show to a caller.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Kind == KindUnauthorized {
		return unauthorizedMessage
	}

	return e.Message
}
