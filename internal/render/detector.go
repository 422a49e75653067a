package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// spaFingerprints are markers of client-rendered frameworks. Any hit means
// the static HTML is likely an empty shell.
var spaFingerprints = []string{
	"__next_data__",
	`id="__next"`,
	"window.__nuxt__",
	`id="__nuxt"`,
	"data-reactroot",
	"data-react-helmet",
	"ng-app",
	"ng-version",
	"window.__apollo_state__",
}

var noscriptMessages = []string{
	"enable javascript",
	"javascriptを有効",
	"javascript を有効",
}

const minVisibleTextRunes = 200

// NeedsDynamic decides whether a statically fetched page warrants the
// headless-browser cost: a known SPA fingerprint, a "please enable
// JavaScript" notice, or suspiciously little visible text alongside script
// tags. Most target government sites are server-rendered, so this gate keeps
// the expensive path rare.
func NeedsDynamic(html string) bool {
	lowered := strings.ToLower(html)
	for _, marker := range spaFingerprints {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	for _, msg := range noscriptMessages {
		if strings.Contains(lowered, msg) {
			return true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	visible := strings.TrimSpace(doc.Find("body").Text())
	hasScripts := doc.Find("script").Length() > 0
	return hasScripts && len([]rune(visible)) < minVisibleTextRunes
}
