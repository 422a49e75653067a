// Package queue implements the priority frontier for the subsidy crawler:
// a deduplicating, retry-aware URL queue whose full state can be exported
// for checkpointing.
package queue

import "time"

// PageType is a coarse classification of what a queued URL points at.
type PageType string

// Page types assigned when a link is discovered.
const (
	PageTypeList   PageType = "list"
	PageTypeDetail PageType = "detail"
	PageTypeSearch PageType = "search"
	PageTypeOther  PageType = "other"
)

// Item is one queued URL. URL is stored in normalized form; the normalized
// form is the identity used by the visited and pending sets.
type Item struct {
	URL        string            `json:"url"`
	Depth      int               `json:"depth"`
	Priority   int               `json:"priority"`
	SourceURL  string            `json:"source_url,omitempty"`
	PageType   PageType          `json:"page_type"`
	RetryCount int               `json:"retry_count"`
	AddedAt    time.Time         `json:"added_at"`
	Context    map[string]string `json:"context,omitempty"`
}

// Stats summarizes queue occupancy.
type Stats struct {
	Pending int `json:"pending"`
	Visited int `json:"visited"`
}

// State is the serializable snapshot used by checkpointing. Item order is
// not guaranteed; Import re-sorts by priority.
type State struct {
	VisitedURLs []string `json:"visited_urls"`
	QueuedItems []Item   `json:"queued_items"`
}
