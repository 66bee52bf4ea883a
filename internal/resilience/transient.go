// Package resilience guards calls to the analysis endpoint with bounded
// retries and a circuit breaker. Only transient failures are retried or
// counted against the breaker.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError marks a failure that may succeed if repeated: throttling,
// gateway errors, dropped connections.
type TransientError struct {
	Err        error
	StatusCode int
}

// NewTransientError wraps err as retryable. statusCode is 0 for
// network-level failures.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return "transient failure"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

var networkHints = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"tls handshake timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is worth retrying. Caller cancellation is
// never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range networkHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is a throttling or
// gateway condition.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	// Cloudflare-fronted gateways (OpenRouter among them) use 52x.
	return code >= 520 && code <= 524
}
