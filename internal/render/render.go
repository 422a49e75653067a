// Package render fetches pages. Two Renderer implementations exist: a cheap
// static fetcher and a headless-browser renderer for JavaScript-heavy sites.
// The engine depends only on the interface so the browser capability can be
// swapped or stubbed without touching the crawl loop.
package render

import (
	"context"
	"time"
)

// RenderedPage is the result of fetching one URL. Ephemeral: produced by a
// Renderer, consumed by classification and extraction, optionally cached.
type RenderedPage struct {
	HTML        string
	URL         string // post-redirect
	Status      int
	ContentType string
	LoadTime    time.Duration
}

// Renderer fetches a URL and returns its rendered HTML. A nil page with a
// nil error means the URL is not worth rendering (non-HTML, client error);
// callers treat that as a normal skip.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (*RenderedPage, error)
	Close(ctx context.Context) error
}
