package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen rejects a call without contacting the endpoint.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// CircuitState is the breaker position.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive tripping failures before opening
	Cooldown         time.Duration // time spent open before a probe is allowed

	// ShouldTrip decides which errors count. Defaults to IsTransient, so
	// rejected credentials or bad requests never open the circuit.
	ShouldTrip func(error) bool
}

// DefaultBreakerConfig opens after five transient failures for 30 seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{Name: name, FailureThreshold: 5, Cooldown: 30 * time.Second}
}

// CircuitBreaker fails fast while the endpoint is known to be down. After
// the cooldown a single probe is let through; its outcome closes or reopens
// the circuit.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	d := DefaultBreakerConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = IsTransient
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// ExecuteVal runs fn unless the circuit is open.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	if err := cb.admit(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	cb.record(err)
	return v, err
}

// State reports the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.setState(CircuitHalfOpen)
		cb.probing = true
		return nil
	case CircuitHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil || !cb.cfg.ShouldTrip(err) {
		cb.failures = 0
		if cb.state != CircuitClosed {
			cb.setState(CircuitClosed)
		}
		return
	}

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.now()
		cb.setState(CircuitOpen)
	}
}

func (cb *CircuitBreaker) setState(s CircuitState) {
	if s == cb.state {
		return
	}
	zap.L().Info("resilience: circuit state change",
		zap.String("breaker", cb.cfg.Name),
		zap.Stringer("from", cb.state),
		zap.Stringer("to", s),
		zap.Int("failures", cb.failures),
	)
	cb.state = s
}
