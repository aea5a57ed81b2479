package crmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
)

// APIError is a structured rejection: the request reached the server and
// was answered with a status outside 2xx.
type APIError struct {
	Status  int
	Code    string
	Message string
	Meta    map[string]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// TransportError is a network-level failure: the request produced no
// response at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a 2xx response whose body did not match the expected
// shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether the server rejected the credentials.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden reports whether the credentials were accepted but the action
// was denied.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsNotFound reports whether the addressed record or entity does not exist.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether the write collided with existing state.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsRateLimited matches throttling responses. Intermediaries do not always
// preserve the 429 status, so the error code and message text are checked
// as well.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusTooManyRequests || apiErr.Code == "RATE_LIMITED" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "rate limit")
}

// IsTransient reports whether the failure is a network condition a later
// attempt could clear. A canceled context is the caller's decision, not the
// network's, and is never transient.
func IsTransient(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return !errors.Is(te.Err, context.Canceled)
}

// IsMalformed reports whether the server answered 2xx with a body the
// client could not parse.
func IsMalformed(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
