package discovery

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/kb"
)

// apiPathPattern matches the portal's internal API paths as they appear in
// page markup and bundled frontend scripts.
var apiPathPattern = regexp.MustCompile(`/land-[a-z]+/[A-Za-z0-9_][A-Za-z0-9_/.-]*[A-Za-z0-9]`)

// ScanConfig controls an endpoint scan.
type ScanConfig struct {
	// StartURLs are the pages to crawl; script bundles referenced by them
	// are fetched too. Defaults to the portal's main and map pages.
	StartURLs []string
	UserAgent string
	Timeout   time.Duration
	// MaxBundles caps how many script files are fetched per scan.
	MaxBundles int
}

func (c ScanConfig) withDefaults() ScanConfig {
	if len(c.StartURLs) == 0 {
		c.StartURLs = []string{"https://kbland.kr", "https://kbland.kr/map"}
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxBundles <= 0 {
		c.MaxBundles = 25
	}
	return c
}

// Candidate is one API path seen during a scan.
type Candidate struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	// Known marks paths already present in the endpoint registry.
	Known bool `json:"known"`
	Hits  int  `json:"hits"`
}

// Report is the outcome of one endpoint scan. Unknown candidates are leads
// for extending the endpoint registry; registry paths that were never seen
// may have been retired upstream.
type Report struct {
	ScannedAt    time.Time   `json:"scanned_at"`
	PagesVisited int         `json:"pages_visited"`
	Candidates   []Candidate `json:"candidates"`
	MissingKnown []string    `json:"missing_known"`
	UnknownPaths int         `json:"unknown_paths"`
}

// ScanEndpoints crawls the portal's public pages and their script bundles,
// extracting internal API paths and comparing them with the static registry.
func ScanEndpoints(cfg ScanConfig, logger *zap.Logger) (Report, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	hits := make(map[string]int)
	pages := 0
	bundles := 0

	c := colly.NewCollector(colly.Async(false))
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	c.OnHTML("script[src]", func(e *colly.HTMLElement) {
		if bundles >= cfg.MaxBundles {
			return
		}
		src := e.Request.AbsoluteURL(e.Attr("src"))
		if src == "" {
			return
		}
		bundles++
		if err := e.Request.Visit(src); err != nil {
			logger.Debug("bundle fetch skipped", zap.String("src", src), zap.Error(err))
		}
	})

	c.OnResponse(func(r *colly.Response) {
		pages++
		for _, match := range apiPathPattern.FindAllString(string(r.Body), -1) {
			hits[match]++
		}
	})

	var firstErr error
	for _, url := range cfg.StartURLs {
		if err := c.Visit(url); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("visit %s: %w", url, err)
		}
	}
	c.Wait()

	if pages == 0 {
		if firstErr != nil {
			return Report{}, firstErr
		}
		return Report{}, fmt.Errorf("scan fetched no pages")
	}

	return buildReport(hits, pages), nil
}

func buildReport(hits map[string]int, pages int) Report {
	known := make(map[string]bool, len(kb.Endpoints()))
	for _, e := range kb.Endpoints() {
		known[e.Path] = false
	}

	report := Report{ScannedAt: time.Now().UTC(), PagesVisited: pages}
	for path, count := range hits {
		_, isKnown := known[path]
		if isKnown {
			known[path] = true
		} else {
			report.UnknownPaths++
		}
		report.Candidates = append(report.Candidates, Candidate{
			Path:     path,
			Category: categorize(path),
			Known:    isKnown,
			Hits:     count,
		})
	}
	sort.Slice(report.Candidates, func(i, j int) bool {
		return report.Candidates[i].Path < report.Candidates[j].Path
	})

	for path, seen := range known {
		if !seen {
			report.MissingKnown = append(report.MissingKnown, path)
		}
	}
	sort.Strings(report.MissingKnown)
	return report
}

// categorize buckets an API path by the data it likely serves.
func categorize(path string) string {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "price") || strings.Contains(p, "sise") || strings.Contains(p, "prc"):
		return "price"
	case strings.Contains(p, "deal") || strings.Contains(p, "trade") || strings.Contains(p, "transaction"):
		return "transaction"
	case strings.Contains(p, "prop") || strings.Contains(p, "article") || strings.Contains(p, "listing"):
		return "listing"
	case strings.Contains(p, "dong") || strings.Contains(p, "sigungu") || strings.Contains(p, "area") || strings.Contains(p, "region"):
		return "region"
	case strings.Contains(p, "complex") || strings.Contains(p, "hscm") || strings.Contains(p, "danji") || strings.Contains(p, "map"):
		return "complex_search"
	default:
		return "other"
	}
}
