package catalog

import (
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API error %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is server-side and worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// IsTransient classifies an error as retryable: network timeouts,
// connection failures, and 5xx responses. Schema rejections (4xx) and
// everything else are terminal.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// IsRejected reports whether the catalog rejected the payload (4xx).
func IsRejected(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}
