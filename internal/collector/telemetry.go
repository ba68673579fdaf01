package collector

import (
	"time"

	"github.com/parkmj/kbland-collector/internal/metrics"
)

func observeCollection(connector, method, outcome string, d time.Duration) {
	metrics.ObserveCollection(connector, method, outcome, d)
}

func observeRateLimitDelay(d time.Duration) {
	metrics.ObserveRateLimitDelay(d)
}
