package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if collectionsTotal == nil || collectionDurationSeconds == nil ||
		fallbackEngagedTotal == nil || rateLimitDelaySeconds == nil ||
		tasksTotal == nil || httpRequestsTotal == nil || httpRequestDuration == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveCollection("kb_price", "http_direct", "success", 120*time.Millisecond)
	if val := testutil.ToFloat64(collectionsTotal.WithLabelValues("kb_price", "http_direct", "success")); val != 1 {
		t.Errorf("Expected collectionsTotal to be 1, got %f", val)
	}

	// An empty method is normalized so the label set stays bounded.
	ObserveCollection("kb_price", "", "error", time.Millisecond)
	if val := testutil.ToFloat64(collectionsTotal.WithLabelValues("kb_price", "none", "error")); val != 1 {
		t.Errorf("Expected normalized method label, got %f", val)
	}

	FallbackEngaged("kb_listing")
	if val := testutil.ToFloat64(fallbackEngagedTotal.WithLabelValues("kb_listing")); val != 1 {
		t.Errorf("Expected fallbackEngagedTotal to be 1, got %f", val)
	}

	TaskOutcome("price", "succeeded")
	if val := testutil.ToFloat64(tasksTotal.WithLabelValues("price", "succeeded")); val != 1 {
		t.Errorf("Expected tasksTotal to be 1, got %f", val)
	}

	ObserveHTTPRequest("GET", "/healthz", 200, 3*time.Millisecond)
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/healthz", "200")); val != 1 {
		t.Errorf("Expected httpRequestsTotal to be 1, got %f", val)
	}
}

func TestObserversAreNoopsBeforeInit(t *testing.T) {
	// The package-level observers must not panic when metrics were never
	// registered, e.g. in unit tests of other packages.
	saved := collectionsTotal
	collectionsTotal = nil
	defer func() { collectionsTotal = saved }()

	ObserveCollection("kb_price", "http_direct", "success", time.Second)
}
