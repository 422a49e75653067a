// Package extract turns rendered pages and PDF documents into outbound
// links and structured subsidy records.
package extract

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/queue"
)

// Link is one discovered outbound URL with its crawl priority.
type Link struct {
	URL      string
	Text     string
	Priority int
	PageType queue.PageType
}

const defaultMaxLinks = 100

// nextMarkers identify "next page" anchors in Japanese and English pagers.
var nextMarkers = []string{"次へ", "次のページ", "次ページ", "next", ">", "»"}

var pagerContainers = "nav, .pagination, .pager, .page-nav, ul.pages, .page-numbers"

var pdfBoostKeywords = []string{"補助金", "助成金", "公募", "募集", "交付", "支援"}

// LinkExtractor discovers and scores outbound links on a page.
type LinkExtractor struct {
	maxLinks int
	logger   *zap.Logger
}

// NewLinkExtractor builds an extractor that keeps at most maxLinks links per
// page, highest priority first. maxLinks <= 0 selects the default of 100.
func NewLinkExtractor(maxLinks int, logger *zap.Logger) *LinkExtractor {
	if maxLinks <= 0 {
		maxLinks = defaultMaxLinks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkExtractor{maxLinks: maxLinks, logger: logger}
}

// ExtractLinks harvests anchors, SPA-style data-href buttons, and any
// profile-configured detail selectors, resolves them against pageURL,
// de-duplicates by normalized URL, scores each link, and returns at most
// maxLinks of them sorted by priority descending. Profile selector matches
// are force-tagged as detail links: configured domain knowledge beats the
// lexical heuristics.
func (e *LinkExtractor) ExtractLinks(html, pageURL string, profile config.SiteProfile) ([]Link, error) {
	doc, base, err := parsePage(html, pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []Link
	add := func(href, text string, forceDetail bool) {
		resolved, ok := resolveHref(base, href)
		if !ok || !queue.IsCrawlableURL(resolved) || queue.IsExcludedURL(resolved) {
			return
		}
		key, err := queue.NormalizeURL(resolved)
		if err != nil || seen[key] {
			return
		}
		seen[key] = true
		link := Link{URL: resolved, Text: text}
		if forceDetail {
			link.Priority = queue.PriorityDetail
			link.PageType = queue.PageTypeDetail
		} else {
			link.Priority = queue.CalculatePriority(text, resolved)
			link.PageType = queue.PageTypeForPriority(link.Priority)
		}
		links = append(links, link)
	}

	for _, selector := range profile.DetailLinkSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if href, ok := anchorHref(s); ok {
				add(href, strings.TrimSpace(s.Text()), true)
			}
		})
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		// Pager anchors go through ExtractPaginationLinks, where the
		// engine can apply its own depth rules.
		if isNextMarker(text) || isNumeric(text) {
			return
		}
		href, _ := s.Attr("href")
		add(href, text, false)
	})
	doc.Find("[data-href], [role=link][data-url]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := anchorHref(s); ok {
			add(href, strings.TrimSpace(s.Text()), false)
		}
	})

	sort.SliceStable(links, func(i, j int) bool { return links[i].Priority > links[j].Priority })
	if len(links) > e.maxLinks {
		e.logger.Debug("truncating extracted links",
			zap.String("page", pageURL),
			zap.Int("found", len(links)),
			zap.Int("kept", e.maxLinks))
		links = links[:e.maxLinks]
	}
	return links, nil
}

// ExtractPaginationLinks returns resolved URLs for pager anchors: numeric
// page links inside pager-like containers plus "next page" anchors anywhere.
func (e *LinkExtractor) ExtractPaginationLinks(html, pageURL string) ([]string, error) {
	doc, base, err := parsePage(html, pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, ok := resolveHref(base, href)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		out = append(out, resolved)
	}

	doc.Find(pagerContainers).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if isNumeric(strings.TrimSpace(s.Text())) || isNextMarker(s.Text()) {
			add(s)
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if isNextMarker(s.Text()) {
			add(s)
		}
	})
	return out, nil
}

// ExtractPDFLinks returns anchors whose target ends in .pdf. Links whose
// text mentions a subsidy keyword are boosted to detail priority so attached
// guideline documents get crawled before generic PDFs.
func (e *LinkExtractor) ExtractPDFLinks(html, pageURL string) ([]Link, error) {
	doc, base, err := parsePage(html, pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, ok := resolveHref(base, href)
		if !ok || seen[resolved] {
			return
		}
		u, err := url.Parse(resolved)
		if err != nil || !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return
		}
		seen[resolved] = true
		text := strings.TrimSpace(s.Text())
		priority := queue.PriorityListing
		for _, kw := range pdfBoostKeywords {
			if strings.Contains(text, kw) {
				priority = queue.PriorityDetail
				break
			}
		}
		out = append(out, Link{URL: resolved, Text: text, Priority: priority, PageType: queue.PageTypeDetail})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func parsePage(html, pageURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing page url %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing html from %q: %w", pageURL, err)
	}
	return doc, base, nil
}

// anchorHref pulls a target from an anchor's href or an SPA button's
// data-href/data-url attribute.
func anchorHref(s *goquery.Selection) (string, bool) {
	for _, attr := range []string{"href", "data-href", "data-url"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isNextMarker(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, m := range nextMarkers {
		if t == m {
			return true
		}
		// Substring matching for single characters would catch ">" inside
		// unrelated anchor text.
		if len([]rune(m)) > 1 && strings.Contains(t, m) {
			return true
		}
	}
	return false
}
