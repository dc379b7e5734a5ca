package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrStatus matches every non-success provider response.
	ErrStatus = errors.New("provider returned an error status")

	// ErrInvalidProxyAddress is returned when the proxy is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrMissingAPIKey is returned when a client that needs a key has none.
	ErrMissingAPIKey = errors.New("provider API key is not configured")
)

// StatusError describes a failed provider call. HTTPStatus is the transport
// status; Code and Message come from the response envelope when present.
type StatusError struct {
	Provider   string
	Endpoint   string
	HTTPStatus int
	Code       string
	Message    string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d, code %s: %s", e.Provider, e.Endpoint, e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Provider, e.Endpoint, e.HTTPStatus)
}

// Unwrap makes errors.Is(err, ErrStatus) true.
func (e *StatusError) Unwrap() error {
	return ErrStatus
}
