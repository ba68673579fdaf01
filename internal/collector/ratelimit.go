package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum wall-clock interval between consecutive
// outbound requests issued by one connector instance. It is a thin wrapper
// over a token bucket with burst 1, so the first call never blocks and every
// later call re-measures elapsed time instead of sleeping a fixed amount.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing perMinute requests per minute.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Limit(float64(perMinute) / 60.0)
	}
	return &RateLimiter{limiter: rate.NewLimiter(r, 1)}
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// or the context ends.
func (l *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		observeRateLimitDelay(d)
	}
	return nil
}
