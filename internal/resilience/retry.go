package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop. Zero fields take the defaults from
// DefaultRetryConfig.
type RetryConfig struct {
	MaxAttempts    int           // total attempts, first try included
	InitialBackoff time.Duration // delay before the second attempt
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64 // 0.2 means +/-20% of the computed delay

	// ShouldRetry replaces IsTransient when set.
	ShouldRetry func(error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig suits a chat-completions endpoint: three attempts,
// one second base delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     20 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.2,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		c.JitterFraction = 0
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = IsTransient
	}
	return c
}

// delay returns the sleep before attempt n+1 (n counted from zero).
func (c RetryConfig) delay(n int) time.Duration {
	d := math.Min(float64(c.InitialBackoff)*math.Pow(c.Multiplier, float64(n)), float64(c.MaxBackoff))
	if c.JitterFraction > 0 {
		d += d * c.JitterFraction * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// DoVal calls fn until it succeeds, returns an error ShouldRetry rejects, the
// attempts run out, or ctx ends. The last error is returned unchanged.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var (
		zero T
		err  error
	)
	for n := 0; n < cfg.MaxAttempts; n++ {
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !cfg.ShouldRetry(err) || n == cfg.MaxAttempts-1 {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, err)
		}

		t := time.NewTimer(cfg.delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
	return zero, err
}

// Do is DoVal for calls without a result.
func Do(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryLogger returns an OnRetry hook that logs at warn level.
func RetryLogger(component, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
