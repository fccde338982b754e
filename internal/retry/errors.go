package retry

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/spetersoncode/strand"
)

// IsTransient determines if an error is transient and should be retried.
// It first checks if the error implements strand.CategorizedError for
// explicit categorization. If not, it falls back to heuristic detection of
// network timeouts, connection resets and DNS failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce strand.CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == strand.ErrorTransient
	}

	return isTransientNetworkError(err)
}

// isTransientNetworkError detects retryable network-level failures.
func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isTransientNetworkError(urlErr.Err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Last resort for errors that hide their type behind fmt wrapping.
	msg := err.Error()
	for _, phrase := range []string{"connection reset", "connection refused", "broken pipe", "unexpected EOF"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
