// Package apperr defines the error taxonomy shared by every component and
// the HTTP adapter that surfaces it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP status mapping and retry decisions.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindTransientUpstream Kind = "transient_upstream"
	KindPersistentUpstream Kind = "persistent_upstream"
	KindInternal          Kind = "internal_error"
)

// Error is the typed error every component returns for failure paths a
// caller might need to branch on (wrong status codes, retry decisions).
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

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func TransientUpstream(err error, format string, args ...interface{}) *Error {
	return Wrap(KindTransientUpstream, fmt.Sprintf(format, args...), err)
}

func PersistentUpstream(err error, format string, args ...interface{}) *Error {
	return Wrap(KindPersistentUpstream, fmt.Sprintf(format, args...), err)
}

func Internal(err error, format string, args ...interface{}) *Error {
	return Wrap(KindInternal, fmt.Sprintf(format, args...), err)
}

// KindOf extracts the Kind from err, defaulting to KindInternal for errors
// that were not constructed through this package.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the error's kind represents a condition a
// caller may reasonably retry (as opposed to a client mistake).
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientUpstream:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error's Kind to the status code the API returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransientUpstream:
		return http.StatusBadGateway
	case KindPersistentUpstream:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON shape returned by the API for any error response.
type Body struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

// ToBody renders err as the response body the API writes alongside
// HTTPStatus(err).
func ToBody(err error) Body {
	var appErr *Error
	if errors.As(err, &appErr) {
		return Body{Error: appErr.Message, Kind: appErr.Kind}
	}
	return Body{Error: err.Error(), Kind: KindInternal}
}
