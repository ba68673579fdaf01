package discovery

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/kb"
)

func TestScanEndpointsReportsCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script src="/static/app.js"></script></body></html>`))
	})
	mux.HandleFunc("/static/app.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`
			const price = api.get("/land-price/price/BasePrcInfoNew");
			const dongs = api.get("/land-complex/map/stutDongAreaNameList");
			const fresh = api.post("/land-property/newPropTrendInq");
			const again = api.get("/land-price/price/BasePrcInfoNew");
		`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	report, err := ScanEndpoints(ScanConfig{
		StartURLs: []string{srv.URL},
		Timeout:   5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, report.PagesVisited)
	require.Len(t, report.Candidates, 3)

	byPath := make(map[string]Candidate, len(report.Candidates))
	for _, c := range report.Candidates {
		byPath[c.Path] = c
	}

	price := byPath["/land-price/price/BasePrcInfoNew"]
	require.True(t, price.Known)
	require.Equal(t, "price", price.Category)
	require.Equal(t, 2, price.Hits)

	dongs := byPath["/land-complex/map/stutDongAreaNameList"]
	require.True(t, dongs.Known)
	require.Equal(t, "region", dongs.Category)

	fresh := byPath["/land-property/newPropTrendInq"]
	require.False(t, fresh.Known)
	require.Equal(t, 1, report.UnknownPaths)

	// Registry paths the scan never saw are flagged for review.
	require.Contains(t, report.MissingKnown, kb.ComplexSearch.Path)
	require.NotContains(t, report.MissingKnown, kb.ComplexPrice.Path)
}

func TestScanEndpointsNoPages(t *testing.T) {
	_, err := ScanEndpoints(ScanConfig{
		StartURLs: []string{"http://127.0.0.1:1/unreachable"},
		Timeout:   time.Second,
	}, zap.NewNop())
	require.Error(t, err)
}
