// Package apierror classifies failures returned by the domain admin core.
package apierror

import (
	"errors"
	"fmt"
)

// Code is the failure class of an Error.
type Code string

const (
	Unknown         Code = "Unknown"
	Unauthenticated Code = "Unauthenticated"
	Unauthorized    Code = "Unauthorized"
	NotFound        Code = "NotFound"
	InvalidRequest  Code = "InvalidRequest"
	Conflict        Code = "Conflict"
	Transport       Code = "Transport"
	APIError        Code = "APIError"
)

// Error is a classified failure. Status and Body are only set for APIError and
// Conflict, where they carry the control plane's response for diagnostics.
type Error struct {
	Code   Code
	Msg    string
	Status int32
	Body   string
	Err    error
}

func (e *Error) Error() string {
	var s string
	if e.Status != 0 {
		s = fmt.Sprintf("domain admin: %s (%d) - %s", e.Code, e.Status, e.Msg)
	} else {
		s = fmt.Sprintf("domain admin: %s - %s", e.Code, e.Msg)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, &Error{Code: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Msg == "" && t.Err == nil
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NewNotFound(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

func NewInvalidRequest(format string, args ...any) *Error {
	return New(InvalidRequest, format, args...)
}

func NewUnauthenticated(format string, args ...any) *Error {
	return New(Unauthenticated, format, args...)
}

func NewUnauthorized(format string, args ...any) *Error {
	return New(Unauthorized, format, args...)
}

// CanonicalCode returns the code of the first *Error in err's chain, or Unknown.
func CanonicalCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

func IsNotFound(err error) bool        { return CanonicalCode(err) == NotFound }
func IsInvalidRequest(err error) bool  { return CanonicalCode(err) == InvalidRequest }
func IsUnauthenticated(err error) bool { return CanonicalCode(err) == Unauthenticated }
func IsUnauthorized(err error) bool    { return CanonicalCode(err) == Unauthorized }
func IsConflict(err error) bool        { return CanonicalCode(err) == Conflict }
func IsTransport(err error) bool       { return CanonicalCode(err) == Transport }
