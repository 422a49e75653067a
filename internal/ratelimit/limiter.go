// Package ratelimit paces outbound requests. It enforces a process-wide
// concurrency ceiling and per-domain request spacing at the same time, so a
// hot domain cannot be starved by slow ones and politeness stays per-host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter coordinates request admission. Every successful WaitForSlot must
// be paired with exactly one Release, typically via defer; a missed Release
// permanently leaks a concurrency slot.
type Limiter struct {
	sem          chan struct{}
	mu           sync.Mutex
	domains      map[string]*rate.Limiter
	defaultDelay time.Duration
}

// New builds a Limiter with the given global concurrency and default
// per-domain delay between requests.
func New(concurrency int, requestDelay time.Duration) *Limiter {
	if concurrency <= 0 {
		concurrency = 1
	}
	if requestDelay <= 0 {
		requestDelay = time.Second
	}
	return &Limiter{
		sem:          make(chan struct{}, concurrency),
		domains:      make(map[string]*rate.Limiter),
		defaultDelay: requestDelay,
	}
}

// WaitForSlot blocks until a global slot is free and the URL's domain has
// been quiet for its configured delay. Waiters are served in FIFO order per
// domain by the underlying token bucket.
func (l *Limiter) WaitForSlot(ctx context.Context, rawURL string) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire slot: %w", ctx.Err())
	}

	if err := l.domainLimiter(rawURL).Wait(ctx); err != nil {
		<-l.sem
		return fmt.Errorf("domain pacing: %w", err)
	}
	return nil
}

// Release frees the global slot taken by WaitForSlot.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
	default:
	}
}

// SetCrawlDelay applies a robots Crawl-delay override for domain. The
// configured default is a floor; robots may slow a domain down, never speed
// it up. Takes effect on the next wait.
func (l *Limiter) SetCrawlDelay(domain string, delay time.Duration) {
	if delay < l.defaultDelay {
		return
	}
	key := strings.ToLower(domain)
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.domains[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		l.domains[key] = limiter
		return
	}
	limiter.SetLimit(rate.Every(delay))
}

// InFlight reports the number of currently held slots.
func (l *Limiter) InFlight() int {
	return len(l.sem)
}

func (l *Limiter) domainLimiter(rawURL string) *rate.Limiter {
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = strings.ToLower(u.Hostname())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.domains[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.defaultDelay), 1)
		l.domains[domain] = limiter
	}
	return limiter
}
