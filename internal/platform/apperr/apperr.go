// Package apperr is the error taxonomy shared by services, REST handlers and
// the realtime router. Services return *Error values; transports map the Kind
// to a status code or an error event.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind string

const (
	Authentication Kind = "authentication"
	Authorization  Kind = "authorization"
	Validation     Kind = "validation"
	NotFound       Kind = "not_found"
	Conflict       Kind = "conflict"
	Internal       Kind = "internal"
)

// Error carries a client-safe message. Err, when set, is the underlying cause
// and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so that errors.Is(err, apperr.ErrNotFound) works for any
// not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is.
var (
	ErrAuthentication = &Error{Kind: Authentication}
	ErrAuthorization  = &Error{Kind: Authorization}
	ErrValidation     = &Error{Kind: Validation}
	ErrNotFound       = &Error{Kind: NotFound}
	ErrConflict       = &Error{Kind: Conflict}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthenticated(msg string) *Error { return New(Authentication, msg) }
func Forbidden(msg string) *Error       { return New(Authorization, msg) }
func Invalid(msg string) *Error         { return New(Validation, msg) }
func Missing(msg string) *Error         { return New(NotFound, msg) }

// Internalf wraps an unexpected failure. The cause is kept for logs; clients
// see a generic message.
func Internalf(err error, format string, args ...any) *Error {
	return &Error{Kind: Internal, Message: "internal server error", Err: fmt.Errorf(format+": %w", append(args, err)...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// HTTPError converts err into an echo error with a {"error","message"} body.
// Internal causes stay attached to the echo error for the request logger.
func HTTPError(err error) *echo.HTTPError {
	kind := KindOf(err)
	he := echo.NewHTTPError(HTTPStatus(kind), map[string]string{
		"error":   string(kind),
		"message": MessageOf(err),
	})
	if kind == Internal {
		he.Internal = err
	}
	return he
}
