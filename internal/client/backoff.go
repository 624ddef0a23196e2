package client

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the reconnect delay curve. The client core never
// retries on its own; this helper exists for callers that loop over fresh
// Client instances after a session ends.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     15 * time.Second,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the delay before reconnect attempt N (1-based).
// With Jitter set the delay is scaled by a factor in [0.5, 1.5); a nil rng
// pins the factor to 0.5 for determinism.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	mult := cfg.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}

	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		delay = math.Min(delay, float64(cfg.MaxDelay))
	}
	if cfg.Jitter {
		factor := 0.5
		if rng != nil {
			factor += rng.Float64()
		}
		delay *= factor
	}
	return time.Duration(delay)
}
