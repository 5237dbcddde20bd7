package openbanking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProviderUnavailable matches every non-2xx response and transport failure.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// APIError is a non-2xx response from the provider, kept whole for diagnostics.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Summary    string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Summary
	if e.Detail != "" {
		msg += " - " + e.Detail
	}
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("provider %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return ErrProviderUnavailable }

// Temporary reports whether the same request may succeed later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type transportError struct {
	method string
	path   string
	err    error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.method, e.path, e.err)
}

func (e *transportError) Unwrap() []error { return []error{ErrProviderUnavailable, e.err} }

// IsRetryable reports whether err is a transient provider failure: 429, 5xx or a transport
// error that was not caused by the caller's own context ending.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

// StatusCode extracts the HTTP status from a provider error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
