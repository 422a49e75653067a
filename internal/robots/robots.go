// Package robots enforces robots.txt directives per host, with a TTL cache
// and fail-open semantics: a site whose robots.txt cannot be fetched or
// parsed is treated as fully permissive rather than blocking the crawl.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	fetchTimeout = 10 * time.Second
	maxBodyBytes = 1 << 20
	defaultTTL   = time.Hour
)

// Policy answers allow/deny and crawl-delay queries against per-host
// robots.txt files. Concurrent queries for a cold host trigger exactly one
// fetch.
type Policy struct {
	client    *http.Client
	userAgent string
	respect   bool
	ttl       time.Duration
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group

	now func() time.Time
}

type cacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// Option customizes Policy construction.
type Option func(*Policy)

// WithTTL overrides how long fetched robots.txt data is cached per host.
func WithTTL(ttl time.Duration) Option {
	return func(p *Policy) { p.ttl = ttl }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// New builds a Policy. With respect=false every query is permitted and no
// network traffic occurs.
func New(respect bool, userAgent string, logger *zap.Logger, opts ...Option) *Policy {
	p := &Policy{
		client:    &http.Client{Timeout: fetchTimeout},
		userAgent: userAgent,
		respect:   respect,
		ttl:       defaultTTL,
		logger:    logger,
		cache:     make(map[string]cacheEntry),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAllowed reports whether the crawler may fetch rawURL. The most specific
// matching User-Agent group is evaluated; among allow and disallow patterns
// the longest match wins, ties in favor of Allow.
func (p *Policy) IsAllowed(ctx context.Context, rawURL string) bool {
	if !p.respect {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data, err := p.load(ctx, parsed)
	if err != nil {
		p.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	group := data.FindGroup(p.userAgent)
	if group == nil {
		return true
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return group.Test(path)
}

// CrawlDelay returns the Crawl-delay directive for the matching group, or
// zero when none is set. The engine feeds this into the rate limiter only
// when it exceeds the configured default.
func (p *Policy) CrawlDelay(ctx context.Context, domain string) time.Duration {
	if !p.respect {
		return 0
	}
	parsed := &url.URL{Scheme: "https", Host: domain}
	data, err := p.load(ctx, parsed)
	if err != nil {
		return 0
	}
	group := data.FindGroup(p.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

func (p *Policy) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)

	p.mu.Lock()
	entry, ok := p.cache[hostKey]
	fresh := ok && p.now().Sub(entry.fetchedAt) < p.ttl
	p.mu.Unlock()
	if fresh {
		return entry.data, nil
	}

	result, err, _ := p.group.Do(hostKey, func() (any, error) {
		data, fetchErr := p.fetch(ctx, parsed)
		if fetchErr != nil {
			return nil, fetchErr
		}
		p.mu.Lock()
		p.cache[hostKey] = cacheEntry{data: data, fetchedAt: p.now()}
		p.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data, ok := result.(*robotstxt.RobotsData)
	if !ok {
		return nil, fmt.Errorf("robots cache type mismatch: %T", result)
	}
	return data, nil
}

func (p *Policy) fetch(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := url.URL{
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   "/robots.txt",
	}
	if robotsURL.Scheme == "" {
		robotsURL.Scheme = "https"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

// Reset drops all cached robots data, for test isolation.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]cacheEntry)
}
