package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/models"
)

// renderSettle is how long the renderer waits for JavaScript to finish
// after navigation when no wait selector is given.
const renderSettle = 2 * time.Second

// BrowserPool manages warm headless browser instances for rendered
// fetches. Each render opens a fresh tab in a pooled browser process,
// chosen round-robin, so concurrent renders never share a tab.
type BrowserPool struct {
	mu           sync.Mutex
	browsers     []context.Context
	cancels      []context.CancelFunc
	allocCancels []context.CancelFunc
	next         int
	initialized  bool

	poolSize  int
	headless  bool
	userAgent string
	logger    arbor.ILogger
}

// NewBrowserPool creates an uninitialized pool. Init starts the browser
// processes; keeping construction separate lets the service start
// without Chrome when rendering is never used.
func NewBrowserPool(poolSize int, headless bool, userAgent string, logger arbor.ILogger) *BrowserPool {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &BrowserPool{
		poolSize:  poolSize,
		headless:  headless,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Init starts the browser instances and verifies each responds. Partial
// startup is tolerated as long as at least one instance works.
func (p *BrowserPool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	p.logger.Info().
		Int("pool_size", p.poolSize).
		Bool("headless", p.headless).
		Msg("Starting browser pool")

	var lastErr error
	for i := 0; i < p.poolSize; i++ {
		if err := p.startInstance(); err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("browser_index", i).Msg("Browser instance failed to start")
		}
	}

	if len(p.browsers) == 0 {
		return fmt.Errorf("failed to start any browser instances: %w", lastErr)
	}
	if len(p.browsers) < p.poolSize {
		p.logger.Warn().
			Int("requested", p.poolSize).
			Int("started", len(p.browsers)).
			Msg("Started fewer browser instances than requested")
	}

	p.initialized = true
	return nil
}

func (p *BrowserPool) startInstance() error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(p.userAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.cancels = append(p.cancels, browserCancel)
	p.allocCancels = append(p.allocCancels, allocCancel)
	return nil
}

// Render navigates a fresh tab to the URL and returns the DOM after
// JavaScript settles. When waitSelector is given the tab waits for it to
// become visible instead of a fixed settle delay. The tab is closed on
// every exit path.
func (p *BrowserPool) Render(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, int, error) {
	browserCtx, err := p.acquire()
	if err != nil {
		return "", 0, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()

	renderCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	// Stop the render when the caller's context ends; the tab context
	// descends from the pool, not the caller.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(url),
	}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Sleep(renderSettle))
	}

	var html string
	var statusCode int64
	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(`window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`, &statusCode),
	)

	start := time.Now()
	if err := chromedp.Run(renderCtx, actions...); err != nil {
		if renderCtx.Err() == context.DeadlineExceeded {
			return "", 0, models.Errorf(models.ErrRenderTimeout, "render of %s timed out after %s", url, timeout)
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		return "", 0, models.Errorf(models.ErrTransport, "render of %s failed: %v", url, err)
	}

	if strings.TrimSpace(html) == "" {
		return "", int(statusCode), models.Errorf(models.ErrTransport, "render of %s returned empty document", url)
	}

	p.logger.Debug().
		Str("url", url).
		Int("status", int(statusCode)).
		Int("html_length", len(html)).
		Dur("duration", time.Since(start)).
		Msg("Rendered page")

	return html, int(statusCode), nil
}

func (p *BrowserPool) acquire() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, fmt.Errorf("browser pool not initialized")
	}
	if len(p.browsers) == 0 {
		return nil, fmt.Errorf("no browser instances available")
	}

	browserCtx := p.browsers[p.next%len(p.browsers)]
	p.next = (p.next + 1) % len(p.browsers)
	return browserCtx, nil
}

// Shutdown closes all browser instances. Bounded so a wedged Chrome
// process cannot hang service shutdown.
func (p *BrowserPool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	done := make(chan struct{})
	go func() {
		for _, cancel := range p.cancels {
			cancel()
		}
		for _, cancel := range p.allocCancels {
			cancel()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		p.logger.Warn().Msg("Browser pool shutdown timed out")
	}

	p.browsers = nil
	p.cancels = nil
	p.allocCancels = nil
	p.initialized = false

	p.logger.Info().Msg("Browser pool shut down")
	return nil
}
