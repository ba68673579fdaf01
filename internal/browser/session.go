// Package browser manages a shared headless Chrome session used when direct
// API calls are blocked. The browser process is a process-wide singleton,
// launched lazily under a lock and reused by all connector instances until
// Shutdown. Every page it produces carries stealth configuration.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls browser behavior and timeouts.
type Config struct {
	Headless          bool
	NavigationTimeout time.Duration // full page load; default 30s
	ResponseTimeout   time.Duration // wait for the intercepted response; default 15s
	MinHumanDelay     time.Duration
	MaxHumanDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 15 * time.Second
	}
	if c.MinHumanDelay <= 0 {
		c.MinHumanDelay = 2 * time.Second
	}
	if c.MaxHumanDelay <= 0 {
		c.MaxHumanDelay = 5 * time.Second
	}
	return c
}

// InterceptRequest describes one browser-intercept fetch: navigate to a
// human-facing page, optionally interact with it to trigger the underlying
// API call, and capture the first network response whose URL contains
// URLPattern and returned status 200.
type InterceptRequest struct {
	PageURL    string
	URLPattern string
	Interact   func(ctx context.Context) error
}

// Manager owns the shared Chrome process. Safe for concurrent use; each
// Intercept call runs in its own tab.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
}

// NewManager builds a Manager. The browser is not launched until the first
// Intercept call needs it.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg.withDefaults(), logger: logger}
}

// acquire lazily creates the allocator and browser contexts.
func (m *Manager) acquire() (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return m.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(RandomUserAgent()),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so a launch failure surfaces
	// here rather than mid-interception.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	m.allocCancel = allocCancel
	m.browserCtx = browserCtx
	m.browserCancel = browserCancel
	m.started = true
	m.logger.Info("browser session initialized", zap.Bool("headless", m.cfg.Headless))
	return m.browserCtx, nil
}

// Shutdown closes the browser and invalidates the shared session. Idempotent
// and safe to call when the browser was never launched.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.browserCancel()
	m.allocCancel()
	m.browserCtx = nil
	m.started = false
	m.logger.Info("browser session shut down")
}

// Intercept drives one page-load-and-capture cycle in a fresh tab. The tab is
// always closed on return. Errors (launch, navigation, timeout waiting for a
// matching response) are returned as-is; callers classify them as retryable
// page-load failures.
func (m *Manager) Intercept(ctx context.Context, req InterceptRequest) ([]byte, error) {
	browserCtx, err := m.acquire()
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	var (
		matchMu   sync.Mutex
		matchedID network.RequestID
		bodyReady = make(chan struct{})
		closed    bool
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			matchMu.Lock()
			if matchedID == "" && e.Response != nil &&
				strings.Contains(e.Response.URL, req.URLPattern) &&
				e.Response.Status == 200 {
				matchedID = e.RequestID
			}
			matchMu.Unlock()
		case *network.EventLoadingFinished:
			matchMu.Lock()
			if matchedID != "" && e.RequestID == matchedID && !closed {
				closed = true
				close(bodyReady)
			}
			matchMu.Unlock()
		}
	})

	navCtx, cancelNav := context.WithTimeout(tabCtx, m.cfg.NavigationTimeout)
	defer cancelNav()

	m.logger.Info("browser navigating", zap.String("url", req.PageURL), zap.String("pattern", req.URLPattern))
	err = chromedp.Run(navCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		emulation.SetTimezoneOverride("Asia/Seoul"),
		emulation.SetLocaleOverride().WithLocale("ko-KR"),
		chromedp.Navigate(req.PageURL),
		chromedp.Sleep(HumanDelay(m.cfg.MinHumanDelay, m.cfg.MaxHumanDelay)),
	)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", req.PageURL, err)
	}

	if req.Interact != nil {
		if err := chromedp.Run(navCtx, chromedp.ActionFunc(req.Interact)); err != nil {
			return nil, fmt.Errorf("page interaction: %w", err)
		}
	}

	select {
	case <-bodyReady:
	case <-time.After(m.cfg.ResponseTimeout):
		return nil, fmt.Errorf("no response matching %q within %s", req.URLPattern, m.cfg.ResponseTimeout)
	case <-tabCtx.Done():
		return nil, fmt.Errorf("page closed while waiting for response: %w", tabCtx.Err())
	}

	var body []byte
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		matchMu.Lock()
		id := matchedID
		matchMu.Unlock()
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read intercepted body: %w", err)
	}
	return body, nil
}
