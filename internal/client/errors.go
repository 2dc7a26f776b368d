package client

import (
	"errors"
	"fmt"
	"net/http"
)

// MsgUnreachable is shown for failures that never produced an HTTP status.
const MsgUnreachable = "cannot reach server"

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// TransportError is a network failure with no status code.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError returns true for 401 and 403 responses.
func IsAuthError(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsUnauthorized returns true for 401 responses.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0. Errors from other
// transports report theirs through an HTTPStatus method.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// Message converts err into the text shown to a user. Backend messages are
// passed through verbatim; anything without one falls back.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return MsgUnreachable
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
