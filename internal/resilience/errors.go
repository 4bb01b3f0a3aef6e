package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsNetworkError reports whether err looks like a transient network-level
// failure (connection, DNS, timeout) rather than an application error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return containsAny(err.Error(), []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"TLS handshake timeout",
		"EOF",
	})
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
