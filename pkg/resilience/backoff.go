package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy returns the delay before retry number attempt (0-indexed)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically and spreads it with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter is the +/- fraction applied to each delay, e.g. 0.1
	Jitter float64
}

// DefaultExponentialBackoff returns the defaults used for gateway API retries:
// roughly 100ms, 200ms, 400ms... capped at 5s, each +/-10%.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// NextDelay returns min(BaseDelay * Multiplier^attempt, MaxDelay) +/- jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := math.Min(
		float64(eb.BaseDelay)*math.Pow(eb.Multiplier, float64(attempt)),
		float64(eb.MaxDelay),
	)
	delay += (rand.Float64()*2 - 1) * delay * eb.Jitter

	if delay < 0 {
		return eb.BaseDelay
	}
	return time.Duration(delay)
}

// FixedBackoff waits the same delay before every retry
type FixedBackoff struct {
	Delay time.Duration
}

func (fb *FixedBackoff) NextDelay(int) time.Duration {
	return fb.Delay
}

// Wait sleeps for the strategy's delay before retry attempt, returning early
// with ctx's error if ctx ends first.
func Wait(ctx context.Context, strategy BackoffStrategy, attempt int) error {
	timer := time.NewTimer(strategy.NextDelay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
