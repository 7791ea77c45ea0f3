package httputil

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between calls, shared across all
// callers of one instance. Grounded directly on the original reputation
// service's mutex + min_request_interval sleep pattern: a caller arriving
// earlier than 1/R seconds after the previous call sleeps the residual.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

// NewRateLimiter builds a limiter admitting at most perSecond calls per
// second. perSecond <= 0 disables limiting (Wait always returns
// immediately).
func NewRateLimiter(perSecond float64) *RateLimiter {
	var interval time.Duration
	if perSecond > 0 {
		interval = time.Duration(float64(time.Second) / perSecond)
	}
	return &RateLimiter{minInterval: interval}
}

// Wait blocks until the caller is clear to proceed, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.minInterval <= 0 {
		return nil
	}

	r.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(r.last)
	var sleep time.Duration
	if elapsed < r.minInterval {
		sleep = r.minInterval - elapsed
	}
	r.last = now.Add(sleep)
	r.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	select {
	case <-time.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
