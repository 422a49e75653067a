// Package models defines the domain types shared across the harvester:
// extracted subsidy records, crawl statistics, and per-URL errors.
package models

import "time"

// ExtractedInfo is a partial subsidy record pulled from one page or PDF. It
// is transient: the engine converts it into a ScrapedSubsidy before
// appending it to the run's result list.
type ExtractedInfo struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	MaxAmount        int64      `json:"max_amount,omitempty"`
	SubsidyRate      string     `json:"subsidy_rate,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	TargetArea       string     `json:"target_area,omitempty"`
	Organization     string     `json:"organization,omitempty"`
	RecruitmentEnded bool       `json:"recruitment_ended,omitempty"`
	SourceURL        string     `json:"source_url"`
	RawText          string     `json:"raw_text,omitempty"`
	// Confidence is a 0-100 score used only as a downstream signal, never
	// as a hard filter.
	Confidence int `json:"confidence"`
}

// ScrapedSubsidy is the persistable record handed to the store collaborator,
// which upserts it by the natural key source:source_id.
type ScrapedSubsidy struct {
	Source       string     `json:"source"`
	SourceID     string     `json:"source_id"`
	SourceURL    string     `json:"source_url"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	MaxAmount    int64      `json:"max_amount,omitempty"`
	SubsidyRate  string     `json:"subsidy_rate,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	TargetArea   string     `json:"target_area"`
	Organization string     `json:"organization,omitempty"`
	Active       bool       `json:"active"`
}

// CrawlStats tracks counters for one run. All counters are monotonically
// non-decreasing during the run and finalized once at completion.
type CrawlStats struct {
	TotalURLs      int       `json:"total_urls"`
	VisitedURLs    int       `json:"visited_urls"`
	SkippedURLs    int       `json:"skipped_urls"`
	SubsidiesFound int       `json:"subsidies_found"`
	CacheHits      int       `json:"cache_hits"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	DurationMs     int64     `json:"duration_ms"`
}

// CrawlError records one per-URL failure. Appended, never mutated.
type CrawlError struct {
	URL       string    `json:"url"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
