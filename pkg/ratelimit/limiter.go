package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"weibocrawl/pkg/retry"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until the next request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets previous requests so the next Wait returns immediately
	Reset()
}

// Pacer spaces requests by a random delay in [min, max]. The first Wait after
// construction or Reset does not sleep.
type Pacer struct {
	min, max time.Duration
	mu       sync.Mutex
	started  bool
	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. A max below min is raised to min.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max, sleep: retry.Wait}
}

// NextDelay draws the next inter-request delay
func (p *Pacer) NextDelay() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + rand.N(p.max-p.min+1)
}

// Wait sleeps before every request except the first
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first {
		return ctx.Err()
	}
	return p.sleep(ctx, p.NextDelay())
}

// Reset makes the next Wait return immediately
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
}
