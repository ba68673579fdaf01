package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/parkmj/kbland-collector/internal/metrics"
)

func TestMetricsMiddleware(t *testing.T) {
	metrics.Init()

	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/complexes/{complex_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/complexes/42")
	if err != nil {
		t.Fatal(err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Log(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	// The counter is labeled by route pattern, not the concrete URL.
	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "collector_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Error("expected collector_http_requests_total to be observed")
	}
}
