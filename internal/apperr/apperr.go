// Package apperr carries the stable, machine-readable failure codes returned to
// API clients, grouped by kind so the transport layer can pick a status code.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind and code, so wrapped copies of a sentinel
// still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func Validation(code string) *Error   { return &Error{Kind: KindValidation, Code: code} }
func Unauthorized(code string) *Error { return &Error{Kind: KindUnauthorized, Code: code} }
func Forbidden(code string) *Error    { return &Error{Kind: KindForbidden, Code: code} }
func NotFound(code string) *Error     { return &Error{Kind: KindNotFound, Code: code} }
func Conflict(code string) *Error     { return &Error{Kind: KindConflict, Code: code} }

// Internal wraps an infrastructure failure under an opaque code. A context
// deadline (pool checkout or statement timeout) becomes a retryable
// service_busy instead.
func Internal(code string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnavailable, Code: CodeServiceBusy, Err: err}
	}
	return &Error{Kind: KindInternal, Code: code, Err: err}
}

const CodeServiceBusy = "service_busy"

// As extracts the *Error from err. Unknown errors are reported as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal_error", err)
}

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
