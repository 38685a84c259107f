// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors handlers wrap to pick a status code.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("dependency unavailable")
)

// Invalid tags err as a client error while keeping it unwrappable.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{tag: ErrValidation, err: err}
}

// Unavailable tags err as a failing upstream dependency.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{tag: ErrUnavailable, err: err}
}

type taggedError struct {
	tag error
	err error
}

func (e *taggedError) Error() string        { return e.err.Error() }
func (e *taggedError) Unwrap() error        { return e.err }
func (e *taggedError) Is(target error) bool { return target == e.tag }

// RespondError maps domain errors to HTTP responses using RFC7807. Details
// of unexpected errors are never echoed to the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Timeout", "")
	case errors.Is(err, ErrUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
