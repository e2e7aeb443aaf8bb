package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes the delay before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay after every failure
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to MaxDelay,
// with up to JitterFactor of random spread.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += rand.Float64()*2*jitter - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
