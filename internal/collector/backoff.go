package collector

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffPolicy computes the delay before retry attempt n (0-indexed) as
// base * 2^n plus a uniform jitter in [0, 10% of that value]. The jitter
// spreads out retries when many connector instances fail at once.
type BackoffPolicy struct {
	Base time.Duration
}

// DefaultBackoff is the policy used when a connector supplies none.
var DefaultBackoff = BackoffPolicy{Base: time.Second}

// Delay returns the wait duration before the given attempt.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * delay * 0.1
	return time.Duration(delay + jitter)
}
