package analysis

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-monitor/internal/resilience"
)

var (
	// ErrCredentialsInvalid means the endpoint rejected the API key or the
	// account behind it. Retrying will not help; the key must be replaced.
	ErrCredentialsInvalid = eris.New("analysis: credentials rejected")
	// ErrRemoteUnavailable covers every other remote failure: network,
	// throttling, server errors, an open circuit.
	ErrRemoteUnavailable = eris.New("analysis: remote endpoint unavailable")
	// ErrEmptyInput rejects a request that has nothing to analyze.
	ErrEmptyInput = eris.New("analysis: empty input")
)

var credentialHints = []string{
	"unauthenticated",
	"invalid api key",
	"invalid x-api-key",
	"user not found",
}

// RemoteError is a failed call to the analysis endpoint. It matches exactly
// one of ErrCredentialsInvalid or ErrRemoteUnavailable under errors.Is, and
// the underlying cause stays reachable through errors.As.
type RemoteError struct {
	Op         string
	Model      string
	StatusCode int // 0 when no HTTP response was received
	Kind       error
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis: %s (%s): status %d: %v", e.Op, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis: %s (%s): %v", e.Op, e.Model, e.Err)
}

func (e *RemoteError) Unwrap() []error { return []error{e.Kind, e.Err} }

// statusCoder is implemented by the openrouter and anthropic client errors.
type statusCoder interface {
	StatusCode() int
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// classify wraps a client failure into a RemoteError.
func classify(op, model string, err error) *RemoteError {
	status := statusOf(err)
	kind := ErrRemoteUnavailable
	if isCredentialFailure(status, err) {
		kind = ErrCredentialsInvalid
	}
	return &RemoteError{Op: op, Model: model, StatusCode: status, Kind: kind, Err: err}
}

func isCredentialFailure(status int, err error) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range credentialHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// markTransient tags retryable HTTP statuses so the retry loop and the
// breaker see them. Network errors are recognized by resilience directly.
func markTransient(err error) error {
	if status := statusOf(err); resilience.IsTransientHTTPStatus(status) || status == 529 {
		return resilience.NewTransientError(err, status)
	}
	return err
}
