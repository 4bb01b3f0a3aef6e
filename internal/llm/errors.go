package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/voxbridge/relay-gateway/internal/resilience"
)

// ErrorClass buckets provider failures for the fallback walk.
type ErrorClass string

const (
	ClassNetwork       ErrorClass = "network"
	ClassUnauthorized  ErrorClass = "unauthorized"
	ClassRateLimited   ErrorClass = "rate_limited"
	ClassServer        ErrorClass = "server_error"
	ClassNotConfigured ErrorClass = "not_configured"
	ClassBadRequest    ErrorClass = "bad_request"
)

// ProviderError is a classified failure from one generation backend. The
// message is already redacted: status text only, never request bodies or
// credentials.
type ProviderError struct {
	Provider string
	Class    ErrorClass
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Class, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Class, e.Message)
}

// Retryable reports whether the next provider in the chain should be tried.
// Bad-request failures are fatal: the input itself is unprocessable and
// retrying elsewhere would fail identically.
func (e *ProviderError) Retryable() bool {
	return e.Class != ClassBadRequest
}

// IsRetryable classifies any error for the fallback walk. Unclassified
// errors are treated as retryable so an unexpected failure mode never
// strands a request on a broken provider.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassUnauthorized
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 500:
		return ClassServer
	default:
		return ClassBadRequest
	}
}

// wrapTransportError classifies a failure that happened before any HTTP
// status was received.
func wrapTransportError(provider string, err error) *ProviderError {
	class := ClassServer
	if resilience.IsNetworkError(err) {
		class = ClassNetwork
	}
	return &ProviderError{Provider: provider, Class: class, Message: err.Error()}
}

// NotConfigured is the failure recorded when a provider without credentials
// is consulted.
func NotConfigured(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Class: ClassNotConfigured, Message: "no API key configured"}
}
