package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DynamicConfig controls the headless renderer.
type DynamicConfig struct {
	UserAgent string
	Timeout   time.Duration
}

const (
	contentSelectors = "main, article, .content, #content"
	readyFloor       = 3 * time.Second
	settleDelay      = time.Second
)

// DynamicRenderer renders pages with headless Chrome via chromedp. The
// browser launches lazily on the first Render call and is shared across
// calls; each Render opens and always closes its own tab.
type DynamicRenderer struct {
	cfg    DynamicConfig
	logger *zap.Logger

	mu              sync.Mutex
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// NewDynamicRenderer constructs the renderer without launching a browser.
func NewDynamicRenderer(cfg DynamicConfig, logger *zap.Logger) *DynamicRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &DynamicRenderer{cfg: cfg, logger: logger}
}

func (r *DynamicRenderer) initialize() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return r.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(r.cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	r.allocatorCancel = allocatorCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	return browserCtx, nil
}

// Render loads rawURL in a fresh tab, waits for page-ready heuristics (a
// known content selector, with a floor and a settle period), and returns the
// DOM snapshot.
func (r *DynamicRenderer) Render(ctx context.Context, rawURL string) (*RenderedPage, error) {
	browserCtx, err := r.initialize()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := &responseMeta{}
	r.recordResponse(tabCtx, meta)

	start := time.Now()
	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitForContent(readyFloor, settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}

	status := meta.status()
	if status >= 400 && status < 500 {
		return nil, nil
	}
	return &RenderedPage{
		HTML:        html,
		URL:         meta.finalURL(rawURL),
		Status:      status,
		ContentType: "text/html",
		LoadTime:    time.Since(start),
	}, nil
}

// Close tears down the shared browser. Safe to call without a prior Render.
func (r *DynamicRenderer) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCancel != nil {
		r.browserCancel()
		r.browserCancel = nil
	}
	if r.allocatorCancel != nil {
		r.allocatorCancel()
		r.allocatorCancel = nil
	}
	r.browserCtx = nil
	return nil
}

// waitForContent polls for a known main-content selector, racing it against
// a floor duration; once content appears it still waits a settle period for
// late XHR-driven DOM updates.
func waitForContent(floor, settle time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		deadline := time.NewTimer(floor)
		defer deadline.Stop()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		expr := fmt.Sprintf("!!document.querySelector(%q)", contentSelectors)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline.C:
				return nil
			case <-ticker.C:
				var found bool
				if err := chromedp.Evaluate(expr, &found).Do(ctx); err != nil {
					continue
				}
				if found {
					return sleepCtx(ctx, settle)
				}
			}
		}
	}
}

type responseMeta struct {
	mu       sync.Mutex
	recorded bool
	code     int
	url      string
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.recorded {
		return 200
	}
	return m.code
}

func (m *responseMeta) finalURL(raw string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.url == "" {
		return raw
	}
	return m.url
}

func (r *DynamicRenderer) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.mu.Lock()
		defer meta.mu.Unlock()
		if meta.recorded {
			return
		}
		meta.recorded = true
		meta.code = int(resp.Response.Status)
		meta.url = resp.Response.URL
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
