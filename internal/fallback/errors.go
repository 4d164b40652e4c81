package fallback

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a failure reported by, or while talking to, a remote provider.
type ProviderError struct {
	Provider Provider
	// HTTP status of the provider response; 0 when no response was read.
	Status int
	Code   string
	// Message is the provider's own error text when it sent one.
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Provider, e.Status)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StatusCode implements httpapi.HTTPError.
func (e *ProviderError) StatusCode() int { return http.StatusBadGateway }

// IsProviderError reports whether err came from a fallback provider.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
