package resilience

import "time"

// FromRetrySettings converts config-file values into a RetryConfig. Zero or
// negative values keep the defaults.
func FromRetrySettings(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return cfg
}

// FromBreakerSettings converts config-file values into a BreakerConfig.
func FromBreakerSettings(name string, failureThreshold, cooldownSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig(name)
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
