// Package upstream holds the error types shared by the HTTP data providers.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrMissingCredentials is returned when a provider is used without its API key.
var ErrMissingCredentials = errors.New("missing credentials")

// StatusError is a non-2xx response from a data provider.
type StatusError struct {
	Service string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Message)
}

// Unauthorized reports a rejected or missing key.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// RateLimited reports a quota or throttling response.
func (e *StatusError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

// DecodeError wraps a response body that could not be understood.
type DecodeError struct {
	Service string
	Err     error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: decode response: %v", e.Service, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Check returns a *StatusError for any non-2xx response, reading a short
// excerpt of the body for the message.
func Check(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Service: service,
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}
}
