package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrMissingAPIKey is returned by NewClient when the provider needs a key and none is set.
var ErrMissingAPIKey = errors.New("llm: API key is required")

// ErrEmptyResponse is returned when the provider answered without any content.
var ErrEmptyResponse = errors.New("llm: empty response")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider Provider
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// Unauthorized reports an invalid or revoked key.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// RateLimited reports a 429 from the provider.
func (e *APIError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Transient reports whether the same request may succeed later.
func (e *APIError) Transient() bool {
	return e.RateLimited() || e.Status >= 500
}

// isRetryableError determines if an error is worth retrying.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
