package transport

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
//
// With jitter the capped delay is scaled into [0.5, 1.5); a nil rng pins the
// factor to 0.5. Displays on one broker retry together after an outage, so
// the spread keeps a republished asset from landing in lockstep.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	switch {
	case attempt <= 1:
		return cfg.InitialDelay
	case cfg.InitialDelay <= 0:
		return 0
	}
	growth := math.Max(cfg.Multiplier, 1)
	delay := float64(cfg.InitialDelay) * math.Pow(growth, float64(attempt-1))
	if limit := float64(cfg.MaxDelay); limit > 0 {
		delay = math.Min(delay, limit)
	}
	if !cfg.Jitter {
		return time.Duration(delay)
	}
	factor := 0.5
	if rng != nil {
		factor += rng.Float64()
	}
	return time.Duration(delay * factor)
}

// Wait blocks for the delay of attempt or until ctx is done.
func Wait(ctx context.Context, cfg BackoffConfig, attempt int, rng *rand.Rand) error {
	d := NextBackoffDelay(cfg, attempt, rng)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
