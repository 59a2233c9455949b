package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config defines backoff behavior.
type Config struct {
	// MaxAttempts caps the number of attempts (0 = unlimited).
	MaxAttempts int
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier is the exponential growth factor.
	Multiplier float64
	// Jitter randomizes delays by ±Jitter fraction (0-1).
	Jitter float64
}

// DefaultConfig returns a conservative default.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Backoff runs functions with exponential backoff between attempts.
type Backoff struct {
	config Config
}

// New creates a Backoff with the given config.
func New(config Config) *Backoff {
	if config.Multiplier < 1 {
		config.Multiplier = 2.0
	}
	return &Backoff{config: config}
}

// Run executes fn until it succeeds, the attempt budget is exhausted, or
// the context is cancelled. The last error is returned on failure.
func (b *Backoff) Run(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if b.config.MaxAttempts > 0 && attempt >= b.config.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Delay(attempt)):
		}
	}
}

// Delay returns the backoff delay after the given 1-based attempt number.
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt-1))

	if max := float64(b.config.MaxDelay); max > 0 && delay > max {
		delay = max
	}

	if b.config.Jitter > 0 {
		span := delay * b.config.Jitter
		delay += span * (2*rand.Float64() - 1)
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
