package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/browser"
	"github.com/parkmj/kbland-collector/internal/collector"
	"github.com/parkmj/kbland-collector/internal/metrics"
)

// Resolver supplies the portal-side identifiers for internal complex/area
// IDs. A missing mapping is a data-setup problem, surfaced as a non-retryable
// configuration error.
type Resolver interface {
	KBComplexID(ctx context.Context, complexID int64) (string, error)
	KBAreaCode(ctx context.Context, areaID int64) (string, error)
}

// Interceptor is the browser-session capability the engine needs; it is
// satisfied by *browser.Manager.
type Interceptor interface {
	Intercept(ctx context.Context, req browser.InterceptRequest) ([]byte, error)
}

// Config tunes the hybrid engine shared by all KB connectors.
type Config struct {
	// FallbackThreshold is the number of consecutive direct-call failures
	// (auth or network class) before the instance switches to the browser
	// path for good. Default 3.
	FallbackThreshold int
	// HTTPTimeout bounds each direct call. Default 30s.
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FallbackThreshold <= 0 {
		c.FallbackThreshold = 3
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	return c
}

// browserPlan is a connector's recipe for the fallback path: which
// human-facing page to load, what intercepted URL to wait for, and an
// optional interaction that triggers the underlying API call.
type browserPlan struct {
	pageURL    string
	urlPattern string
	interact   func(ctx context.Context) error
}

// client is the per-connector-instance hybrid fetch engine. It starts in
// direct mode and escalates to browser interception after FallbackThreshold
// consecutive auth/network failures. The escalation is one-way: once engaged,
// every fetch for this instance goes through the browser until the instance
// is discarded. Safe for concurrent use: the escalation state is guarded by
// a mutex, though workers normally give each goroutine its own connector so
// rate pacing stays per-instance.
type client struct {
	name    string
	cfg     Config
	browser Interceptor
	logger  *zap.Logger

	mu              sync.Mutex
	httpClient      *http.Client
	directFailures  int
	fallbackEngaged bool
}

func newClient(name string, intercept Interceptor, cfg Config, logger *zap.Logger) *client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		name:    name,
		cfg:     cfg.withDefaults(),
		browser: intercept,
		logger:  logger.With(zap.String("connector", name)),
	}
}

// defaultHeaders makes direct calls look like the portal's own frontend.
func defaultHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	h.Set("Referer", "https://kbland.kr/map")
	h.Set("Origin", "https://kbland.kr")
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8")
	h.Set("webservice", "1")
	return h
}

// http lazily builds the owned HTTP client; reused for the instance lifetime.
func (c *client) http() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.cfg.HTTPTimeout}
	}
	return c.httpClient
}

// Close releases the owned HTTP client's connections.
func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
}

// engaged reports whether the instance has switched to the browser path.
func (c *client) engaged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallbackEngaged
}

// noteDirectSuccess resets the consecutive-failure counter. Only meaningful
// while the instance is still in direct mode.
func (c *client) noteDirectSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directFailures = 0
}

// noteDirectFailure records one direct-call failure and reports whether the
// instance is now in browser mode. Only auth and network class failures
// count; rate limits are handled by backoff, not by switching transports.
// When two goroutines fail at once, only the one that crosses the threshold
// records the escalation; the other just sees the engaged state.
func (c *client) noteDirectFailure(err error) (escalated bool) {
	switch collector.KindOf(err) {
	case collector.KindAuth, collector.KindNetwork:
	default:
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallbackEngaged {
		return true
	}
	c.directFailures++
	c.logger.Warn("direct fetch failed",
		zap.Int("consecutive_failures", c.directFailures),
		zap.Int("threshold", c.cfg.FallbackThreshold),
		zap.Error(err),
	)
	if c.directFailures < c.cfg.FallbackThreshold {
		return false
	}
	c.fallbackEngaged = true
	metrics.FallbackEngaged(c.name)
	c.logger.Warn("switching to browser fallback")
	return true
}

// fetch executes one unit of work through whichever path the instance is in.
// Below the escalation threshold, direct failures are re-raised so the retry
// wrapper keeps control; the switch to the browser is a connector-level
// escalation, not a per-attempt retry.
func (c *client) fetch(ctx context.Context, endpoint Endpoint, params map[string]any, plan browserPlan) (any, collector.Metadata, error) {
	if !c.engaged() {
		data, err := c.fetchDirect(ctx, endpoint, params)
		if err == nil {
			c.noteDirectSuccess()
			c.logger.Debug("direct fetch succeeded", zap.String("endpoint", endpoint.Name))
			return data, collector.Metadata{Method: collector.MethodDirect, Source: "kb"}, nil
		}
		if !c.noteDirectFailure(err) {
			return nil, collector.Metadata{Method: collector.MethodDirect, Source: "kb"}, err
		}
	}

	data, err := c.fetchBrowser(ctx, plan)
	if err != nil {
		return nil, collector.Metadata{Method: collector.MethodBrowser, Source: "kb"}, err
	}
	c.logger.Debug("browser fetch succeeded", zap.String("page_url", plan.pageURL))
	return data, collector.Metadata{Method: collector.MethodBrowser, Source: "kb"}, nil
}

// fetchDirect issues one call straight to the internal API.
func (c *client) fetchDirect(ctx context.Context, endpoint Endpoint, params map[string]any) (any, error) {
	var req *http.Request
	var err error

	switch endpoint.Method {
	case http.MethodPost:
		body, marshalErr := json.Marshal(params)
		if marshalErr != nil {
			return nil, collector.Errorf(collector.KindNetwork, "marshal request body: %w", marshalErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(), bytes.NewReader(body))
		if req != nil {
			req.Header = defaultHeaders()
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL(), nil)
		if req != nil {
			req.Header = defaultHeaders()
			q := url.Values{}
			for k, v := range params {
				q.Set(k, asString(v))
			}
			req.URL.RawQuery = q.Encode()
		}
	}
	if err != nil {
		return nil, collector.Errorf(collector.KindNetwork, "build request: %w", err)
	}

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, collector.Errorf(collector.KindNetwork, "%s %s: %w", endpoint.Method, endpoint.URL(), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		var data any
		if decodeErr := json.NewDecoder(resp.Body).Decode(&data); decodeErr != nil {
			// A 200 that isn't JSON is almost always an anti-bot block
			// page; treat it like any other network failure so it counts
			// toward escalation.
			return nil, collector.Errorf(collector.KindNetwork, "decode response: %w", decodeErr)
		}
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, collector.Errorf(collector.KindRateLimit, "rate limited: HTTP %d", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, collector.Errorf(collector.KindAuth, "auth error: HTTP %d", resp.StatusCode)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, collector.Errorf(collector.KindNetwork, "HTTP %d: %s", resp.StatusCode, snippet)
	}
}

// fetchBrowser loads the connector's page and captures the intercepted API
// response. All failures here are page-load class and retryable.
func (c *client) fetchBrowser(ctx context.Context, plan browserPlan) (any, error) {
	if c.browser == nil {
		return nil, collector.Errorf(collector.KindBrowser, "browser session not configured")
	}
	body, err := c.browser.Intercept(ctx, browser.InterceptRequest{
		PageURL:    plan.pageURL,
		URLPattern: plan.urlPattern,
		Interact:   plan.interact,
	})
	if err != nil {
		return nil, collector.Errorf(collector.KindBrowser, "browser fetch: %w", err)
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, collector.Errorf(collector.KindBrowser, "intercepted body not JSON: %w", err)
	}
	return data, nil
}

// resolveComplexID wraps Resolver lookups in the config error kind.
func resolveComplexID(ctx context.Context, r Resolver, complexID int64) (string, error) {
	id, err := r.KBComplexID(ctx, complexID)
	if err != nil {
		return "", collector.Errorf(collector.KindConfig, "complex %d: %w", complexID, err)
	}
	return id, nil
}

func resolveAreaCode(ctx context.Context, r Resolver, areaID int64) (string, error) {
	code, err := r.KBAreaCode(ctx, areaID)
	if err != nil {
		return "", collector.Errorf(collector.KindConfig, "area %d: %w", areaID, err)
	}
	return code, nil
}

// APIClient exposes direct endpoint calls for callers outside the connector
// set, such as region-based complex discovery. It shares the engine's request
// shaping and error taxonomy but never falls back to the browser.
type APIClient struct {
	c *client
}

// NewAPIClient builds a direct-only client.
func NewAPIClient(cfg Config, logger *zap.Logger) *APIClient {
	return &APIClient{c: newClient("kb_api", nil, cfg, logger)}
}

// Call issues one direct request against the endpoint.
func (a *APIClient) Call(ctx context.Context, endpoint Endpoint, params map[string]any) (any, error) {
	return a.c.fetchDirect(ctx, endpoint, params)
}

// Close releases the underlying HTTP client.
func (a *APIClient) Close() { a.c.Close() }
