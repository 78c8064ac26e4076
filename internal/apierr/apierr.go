package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error category codes. These end up in audit records and error bodies,
// so they are stable strings, not iota values.
const (
	CodeRouteNotFound     = "RouteNotFound"
	CodeMethodNotAllowed  = "MethodNotAllowed"
	CodeUnauthenticated   = "Unauthenticated"
	CodeForbidden         = "Forbidden"
	CodeDownstreamFailure = "DownstreamFailure"
	CodeInternalFailure   = "InternalFailure"
)

// Error is the uniform pipeline failure: an HTTP status, a category code
// and a caller-facing message. Every stage returns one of these so the
// catch-all handler and the audit logger can treat failures identically.
type Error struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func RouteNotFound(apiID string) *Error {
	return New(http.StatusNotFound, CodeRouteNotFound, "api not found or disabled: "+apiID)
}

func MethodNotAllowed(method string) *Error {
	return New(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed: "+method)
}

func Unauthenticated(message string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

// Downstream wraps a transport failure talking to the resolved target.
func Downstream(err error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    CodeDownstreamFailure,
		Message: "downstream request failed",
		Cause:   err,
	}
}

// Internal wraps anything unanticipated.
func Internal(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalFailure,
		Message: "internal server error",
		Cause:   err,
	}
}

// From normalizes any error into an *Error. Non-pipeline errors become
// InternalFailure so callers always have a status and a category.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// Synthesize builds the audit error message: category plus the root cause
// message, or the bare category when there is nothing more to say.
func Synthesize(err error) string {
	e := From(err)
	msg := e.Message
	if e.Cause != nil {
		if m := rootCause(e.Cause).Error(); m != "" {
			msg = m
		}
	}
	if msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
