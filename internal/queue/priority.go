package queue

import "strings"

// Priority tiers. The scorer is deliberately lexical: the crawler has no
// global link-graph signal, so locally visible anchor text and URL tokens are
// the only cheap ranking features.
const (
	PriorityDetail  = 100
	PrioritySubsidy = 80
	PriorityListing = 60
	PriorityNews    = 40
	PriorityDefault = 20
)

type priorityTier struct {
	score    int
	keywords []string
}

// Tiers are checked highest first against both link text and URL; the first
// tier with a hit wins.
var priorityTiers = []priorityTier{
	{PriorityDetail, []string{
		"申請", "応募", "募集要項", "公募要領", "交付要綱", "詳細", "要項",
		"detail", "apply", "application", "youkou",
	}},
	{PrioritySubsidy, []string{
		"補助金", "助成金", "支援金", "給付金", "奨励金", "交付金", "補助事業",
		"hojokin", "joseikin", "subsidy", "grant",
	}},
	{PriorityListing, []string{
		"一覧", "検索", "補助金情報", "支援制度", "制度一覧",
		"list", "search", "index",
	}},
	{PriorityNews, []string{
		"新着", "お知らせ", "更新情報", "トピックス", "news", "topics",
	}},
}

// CalculatePriority scores a discovered link from its anchor text and URL.
func CalculatePriority(linkText, rawURL string) int {
	text := strings.ToLower(linkText)
	lowered := strings.ToLower(rawURL)
	for _, tier := range priorityTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(text, kw) || strings.Contains(lowered, kw) {
				return tier.score
			}
		}
	}
	return PriorityDefault
}

// PageTypeForPriority maps a priority tier back to a page classification.
func PageTypeForPriority(priority int) PageType {
	switch {
	case priority >= PrioritySubsidy:
		return PageTypeDetail
	case priority >= PriorityListing:
		return PageTypeList
	default:
		return PageTypeOther
	}
}
