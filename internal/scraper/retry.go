package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy bounds repeated attempts with exponential backoff and
// jitter. A zero MaxAttempts means one attempt, no retries.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultSessionPolicy covers full browser session restarts.
func DefaultSessionPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// Execute runs fn up to MaxAttempts times, backing off between failures.
// The last error is returned when every attempt fails. Context
// cancellation aborts the wait immediately.
func (p RetryPolicy) Execute(ctx context.Context, logger arbor.ILogger, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		wait := p.jitter(delay)
		logger.Warn().
			Str("operation", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", wait).
			Err(lastErr).
			Msg("Attempt failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

func (p RetryPolicy) jitter(d time.Duration) time.Duration {
	if p.JitterFactor <= 0 {
		return d
	}
	spread := float64(d) * p.JitterFactor
	offset := (rand.Float64()*2 - 1) * spread
	return time.Duration(float64(d) + offset)
}
