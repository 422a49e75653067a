package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/models"
	"github.com/hojonavi/hojokin-harvester/internal/textextract"
)

// subsidyIndicators gate extraction: a page must mention at least two
// distinct indicators before any field extraction runs. Government sites are
// full of pages that mention 申請 once in a footer.
var subsidyIndicators = []string{
	"補助金", "助成金", "補助率", "助成率", "補助額", "交付",
	"公募", "募集期間", "申請期間", "上限額", "補助対象", "支援金",
}

const minIndicatorHits = 2

// defaultTitleSelectors are tried before falling back to the <title> tag.
var defaultTitleSelectors = []string{"main h1", "article h1", "h1", ".page-title", ".entry-title"}

// defaultContentSelectors locate the main prose of a page.
var defaultContentSelectors = []string{"main", "article", ".content", "#content", ".main-content"}

const (
	titleMinRunes = 5
	titleMaxRunes = 200
	maxDescRunes  = 1000
	maxRawRunes   = 4000
)

// Confidence weights per extracted field.
const (
	confTitle     = 30
	confAmount    = 20
	confDeadline  = 15
	confRate      = 15
	confDescBonus = 20
	confCap       = 100
)

// SubsidyExtractor pulls a structured subsidy record out of a rendered HTML
// page. A nil record with a nil error means the page is not a subsidy page,
// which is the common case and not a failure.
type SubsidyExtractor struct {
	logger *zap.Logger
	now    func() time.Time
}

// SubsidyOption customizes a SubsidyExtractor.
type SubsidyOption func(*SubsidyExtractor)

// WithNowFunc injects the clock used for year inference on dates without an
// explicit year.
func WithNowFunc(now func() time.Time) SubsidyOption {
	return func(e *SubsidyExtractor) { e.now = now }
}

func NewSubsidyExtractor(logger *zap.Logger, opts ...SubsidyOption) *SubsidyExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &SubsidyExtractor{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractSubsidy classifies and extracts one page. profile carries optional
// per-domain selector hints.
func (e *SubsidyExtractor) ExtractSubsidy(html, pageURL string, profile config.SiteProfile) (*models.ExtractedInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing html from %q: %w", pageURL, err)
	}

	bodyText := textextract.NormalizeText(doc.Find("body").Text())
	if countIndicators(bodyText) < minIndicatorHits {
		return nil, nil
	}

	title := extractTitle(doc, profile.TitleSelectors)
	info := &models.ExtractedInfo{
		Title:     title,
		SourceURL: pageURL,
		RawText:   truncateRunes(bodyText, maxRawRunes),
	}
	fillFromText(info, bodyText, e.now())
	info.Description = extractDescription(doc, profile.ContentSelectors, title)
	info.Confidence = scoreConfidence(info)

	e.logger.Debug("extracted subsidy page",
		zap.String("url", pageURL),
		zap.String("title", title),
		zap.Int("confidence", info.Confidence))
	return info, nil
}

// fillFromText runs the shared text-extraction engine over normalized prose
// and sets the numeric and date fields. Used for both HTML and PDF sources.
func fillFromText(info *models.ExtractedInfo, text string, now time.Time) {
	if amount, ok := textextract.ExtractAmount(text); ok {
		info.MaxAmount = amount
	}
	if rate, ok := textextract.ExtractRate(text); ok {
		info.SubsidyRate = rate.Text
	}
	if deadline, ok := textextract.ExtractDeadline(text, now); ok {
		info.Deadline = &deadline
	}
	if start, ok := textextract.ExtractStartDate(text, now); ok {
		info.StartDate = &start
	}
	info.RecruitmentEnded = textextract.IsRecruitmentEnded(text)
}

func countIndicators(text string) int {
	hits := 0
	for _, kw := range subsidyIndicators {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

// extractTitle tries profile selectors, then the defaults, then a cleaned
// <title> tag. The first candidate of 5 to 200 runes wins.
func extractTitle(doc *goquery.Document, profileSelectors []string) string {
	selectors := append(append([]string{}, profileSelectors...), defaultTitleSelectors...)
	for _, sel := range selectors {
		if t := cleanTitle(doc.Find(sel).First().Text()); titleLengthOK(t) {
			return t
		}
	}
	if t := cleanTitle(doc.Find("title").First().Text()); titleLengthOK(t) {
		return t
	}
	return ""
}

// cleanTitle strips a trailing "| site name" style suffix.
func cleanTitle(raw string) string {
	t := strings.TrimSpace(textextract.NormalizeText(raw))
	for _, sep := range []string{"|", "｜", " - ", "：", ": "} {
		if idx := strings.Index(t, sep); idx > 0 {
			t = strings.TrimSpace(t[:idx])
		}
	}
	return t
}

func titleLengthOK(t string) bool {
	n := len([]rune(t))
	return n >= titleMinRunes && n <= titleMaxRunes
}

// extractDescription takes prose from the first matching content container,
// removes the already-extracted title, and truncates.
func extractDescription(doc *goquery.Document, profileSelectors []string, title string) string {
	selectors := append(append([]string{}, profileSelectors...), defaultContentSelectors...)
	var text string
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		node.Find("script, style, nav, header, footer").Remove()
		text = textextract.NormalizeText(node.Text())
		if text != "" {
			break
		}
	}
	if text == "" {
		return ""
	}
	if title != "" {
		text = strings.TrimSpace(strings.Replace(text, title, "", 1))
	}
	return truncateRunes(text, maxDescRunes)
}

func scoreConfidence(info *models.ExtractedInfo) int {
	score := 0
	if titleLengthOK(info.Title) {
		score += confTitle
	}
	if info.MaxAmount > 0 {
		score += confAmount
	}
	if info.Deadline != nil {
		score += confDeadline
	}
	if info.SubsidyRate != "" {
		score += confRate
	}
	if len([]rune(info.Description)) >= 100 {
		score += confDescBonus
	}
	if score > confCap {
		score = confCap
	}
	return score
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
