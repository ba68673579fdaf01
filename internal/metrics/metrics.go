// Package metrics exposes Prometheus collectors for the collection service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectionsTotal          *prometheus.CounterVec
	collectionDurationSeconds *prometheus.HistogramVec
	fallbackEngagedTotal      *prometheus.CounterVec
	rateLimitDelaySeconds     prometheus.Histogram
	tasksTotal                *prometheus.CounterVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		collectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_collections_total",
				Help: "Collection cycles, labeled by connector, fetch method, and outcome.",
			},
			[]string{"connector", "method", "outcome"},
		)

		collectionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_collection_duration_seconds",
				Help:    "Wall-clock duration of one fetch+parse cycle per connector.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"connector"},
		)

		fallbackEngagedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_browser_fallback_engaged_total",
				Help: "Connector instances that escalated from direct HTTP to browser interception.",
			},
			[]string{"connector"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collector_rate_limit_delay_seconds",
				Help:    "Delay introduced by the proactive per-connector rate limiter.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
		)

		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_tasks_total",
				Help: "Worker task outcomes, labeled by job type and status.",
			},
			[]string{"job_type", "status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_http_requests_total",
				Help: "HTTP requests served, labeled by method, route, and status code.",
			},
			[]string{"method", "route", "status"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_duration_seconds",
				Help:    "HTTP request latency per route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveCollection records one collection cycle outcome.
func ObserveCollection(connector, method, outcome string, d time.Duration) {
	if collectionsTotal == nil {
		return
	}
	if method == "" {
		method = "none"
	}
	collectionsTotal.WithLabelValues(connector, method, outcome).Inc()
	collectionDurationSeconds.WithLabelValues(connector).Observe(d.Seconds())
}

// FallbackEngaged counts a sticky escalation to the browser path.
func FallbackEngaged(connector string) {
	if fallbackEngagedTotal == nil {
		return
	}
	fallbackEngagedTotal.WithLabelValues(connector).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the rate limiter.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TaskOutcome counts one worker task completion.
func TaskOutcome(jobType, status string) {
	if tasksTotal == nil {
		return
	}
	tasksTotal.WithLabelValues(jobType, status).Inc()
}
