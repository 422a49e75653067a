package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// StaticConfig controls the static renderer.
type StaticConfig struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// StaticRenderer fetches pages over plain HTTP via a Colly collector, with
// linear-backoff retry on server and network errors.
type StaticRenderer struct {
	baseCollector *colly.Collector
	cfg           StaticConfig
	logger        *zap.Logger
}

// NewStaticRenderer constructs a configured static renderer.
func NewStaticRenderer(cfg StaticConfig, logger *zap.Logger) (*StaticRenderer, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("static renderer timeout must be > 0")
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	// Robots compliance is owned by the engine's robots policy; checking
	// twice here would bypass its fail-open semantics.
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &StaticRenderer{
		baseCollector: base,
		cfg:           cfg,
		logger:        logger,
	}, nil
}

// Render fetches rawURL, retrying 5xx and network failures with linear
// backoff (retryDelay * attempt) up to MaxRetries. Client errors and
// non-HTML responses return (nil, nil): not retryable, not worth keeping.
func (r *StaticRenderer) Render(ctx context.Context, rawURL string) (*RenderedPage, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.cfg.RetryDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
		page, retryable, err := r.fetch(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		r.logger.Debug("static fetch retry",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("fetch %s: %w", rawURL, lastErr)
}

// Close implements Renderer; the static renderer holds no resources beyond
// pooled connections.
func (r *StaticRenderer) Close(context.Context) error { return nil }

type fetchResult struct {
	page   *RenderedPage
	status int
	err    error
}

func (r *StaticRenderer) fetch(ctx context.Context, rawURL string) (page *RenderedPage, retryable bool, err error) {
	collector := r.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	start := time.Now()
	collector.OnResponse(func(resp *colly.Response) {
		contentType := ""
		if resp.Headers != nil {
			contentType = resp.Headers.Get("Content-Type")
		}
		send(fetchResult{
			page: &RenderedPage{
				HTML:        string(resp.Body),
				URL:         resp.Request.URL.String(),
				Status:      resp.StatusCode,
				ContentType: contentType,
				LoadTime:    time.Since(start),
			},
			status: resp.StatusCode,
		})
	})
	collector.OnError(func(resp *colly.Response, cbErr error) {
		if cbErr == nil {
			cbErr = errors.New("unknown fetch error")
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		send(fetchResult{status: status, err: cbErr})
	})

	if visitErr := collector.Visit(rawURL); visitErr != nil {
		return nil, false, fmt.Errorf("visit %s: %w", rawURL, visitErr)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		return r.classify(ctx, res)
	default:
		return nil, false, errors.New("fetch produced no result")
	}
}

// classify maps a raw fetch outcome onto the renderer contract: 5xx and
// network errors are retryable, 4xx and non-HTML are terminal skips.
func (r *StaticRenderer) classify(ctx context.Context, res fetchResult) (*RenderedPage, bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}
	switch {
	case res.err != nil && res.status >= 500:
		return nil, true, fmt.Errorf("server error %d: %w", res.status, res.err)
	case res.err != nil && res.status >= 400:
		// Client errors are permanent; report a skip, not a failure.
		return nil, false, nil
	case res.err != nil:
		return nil, true, fmt.Errorf("network error: %w", res.err)
	}
	if !isHTMLContent(res.page.ContentType) {
		return nil, false, nil
	}
	return res.page, false, nil
}

func isHTMLContent(contentType string) bool {
	if contentType == "" {
		return true // many government servers omit it; let extraction decide
	}
	lowered := strings.ToLower(contentType)
	return strings.Contains(lowered, "text/html") ||
		strings.Contains(lowered, "application/xhtml")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
