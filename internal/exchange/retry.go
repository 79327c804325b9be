package exchange

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig bounds the exponential backoff for transient execution
// failures.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	// JitterFraction randomizes each delay by up to this fraction to
	// avoid synchronized retries.
	JitterFraction float64 `json:"jitter_fraction"`
}

// DefaultRetryConfig returns the standard backoff settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.25,
	}
}

// WithRetry runs op with bounded exponential backoff. Terminal errors and
// context cancellation stop immediately; anything else is treated as
// transient. Exhausting the attempts returns the last error; the caller
// degrades to skipping the symbol for this tick, never crashing the pass.
func WithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrTerminal) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		d := delay
		if cfg.JitterFraction > 0 {
			d += time.Duration(rand.Float64() * cfg.JitterFraction * float64(delay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
