package queue

import "strings"

// Default admission filters. Pages behind these will never contain subsidy
// listings worth the fetch; binary assets go through the PDF path instead of
// the queue.
var (
	defaultExcludedKeywords = []string{
		"login", "logout", "signin", "signup", "mypage", "contact",
		"inquiry", "faq", "sitemap", "privacy", "policy", "terms",
		"ログイン", "お問い合わせ", "お問合せ", "よくある質問",
		"サイトマップ", "プライバシー", "利用規約", "アクセシビリティ",
	}
	defaultExcludedExtensions = []string{
		".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico", ".css",
		".js", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
		".zip", ".lzh", ".tar", ".gz", ".csv", ".mp4", ".mp3",
	}
	excludedSchemePrefixes = []string{"javascript:", "mailto:", "tel:"}
)

// IsCrawlableURL reports whether a raw URL uses a scheme the crawler can
// fetch at all.
func IsCrawlableURL(rawURL string) bool {
	lowered := strings.ToLower(strings.TrimSpace(rawURL))
	for _, prefix := range excludedSchemePrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return false
		}
	}
	return true
}

// IsExcludedURL applies the default keyword and extension filters. The link
// extractor uses this to discard junk before scoring; the queue re-checks on
// Enqueue with whatever lists it was configured with.
func IsExcludedURL(rawURL string) bool {
	return matchesKeyword(rawURL, defaultExcludedKeywords) ||
		matchesExtension(rawURL, defaultExcludedExtensions)
}

func matchesKeyword(rawURL string, keywords []string) bool {
	lowered := strings.ToLower(rawURL)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func matchesExtension(rawURL string, extensions []string) bool {
	lowered := strings.ToLower(rawURL)
	if i := strings.IndexAny(lowered, "?#"); i >= 0 {
		lowered = lowered[:i]
	}
	for _, ext := range extensions {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}
	return false
}
