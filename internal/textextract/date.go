package textextract

import (
	"regexp"
	"strconv"
	"time"
)

// reiwaBaseYear converts Japanese era years: 令和1 = 2019, so the Western
// year is 2018 + N.
const reiwaBaseYear = 2018

type datePattern struct {
	re    *regexp.Regexp
	build func(m []string, now time.Time) (time.Time, bool)
}

// datePatterns is priority-ordered; the first pattern to match wins. Dates
// have no "biggest wins" semantic, so matching short-circuits.
var datePatterns = []datePattern{
	{regexp.MustCompile(`令和([0-9]{1,2})年([0-9]{1,2})月([0-9]{1,2})日`), buildEraDate},
	{regexp.MustCompile(`([0-9]{4})年([0-9]{1,2})月([0-9]{1,2})日`), buildWesternDate},
	{regexp.MustCompile(`([0-9]{4})[/.-]([0-9]{1,2})[/.-]([0-9]{1,2})`), buildWesternDate},
	{regexp.MustCompile(`([0-9]{1,2})月([0-9]{1,2})日`), buildYearlessDate},
}

// deadlineScopes narrow the search to text near a deadline marker before
// falling back to the first date anywhere.
var deadlineScopes = []*regexp.Regexp{
	regexp.MustCompile(`(?:締切|締め切り|〆切|申請期限|応募期限|受付期限|期限|期日)\s*:?\s*(.{0,30})`),
	regexp.MustCompile(`(.{0,30}?)(?:まで|必着)`),
}

var startScopes = []*regexp.Regexp{
	regexp.MustCompile(`(?:受付開始|募集開始|申請受付|公募開始)\s*:?\s*(.{0,30})`),
	regexp.MustCompile(`(.{0,30}?)(?:から|より)(?:受付|募集|申請)?`),
}

// ExtractDeadline finds the application deadline in text. Year-omitted dates
// are resolved against now: a month/day already past is assumed to mean next
// year.
func ExtractDeadline(text string, now time.Time) (time.Time, bool) {
	return extractScopedDate(text, now, deadlineScopes)
}

// ExtractStartDate finds the recruitment start date in text.
func ExtractStartDate(text string, now time.Time) (time.Time, bool) {
	return extractScopedDate(text, now, startScopes)
}

func extractScopedDate(text string, now time.Time, scopes []*regexp.Regexp) (time.Time, bool) {
	normalized := NormalizeText(text)
	for _, scope := range scopes {
		for _, m := range scope.FindAllStringSubmatch(normalized, -1) {
			if d, ok := firstDate(m[1], now); ok {
				return d, true
			}
		}
	}
	return firstDate(normalized, now)
}

func firstDate(text string, now time.Time) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, ok := p.build(m, now); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func buildEraDate(m []string, _ time.Time) (time.Time, bool) {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return makeDate(reiwaBaseYear+year, month, day)
}

func buildWesternDate(m []string, _ time.Time) (time.Time, bool) {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return makeDate(year, month, day)
}

// buildYearlessDate constructs the date in the current year; if that instant
// has already passed, it assumes next year.
func buildYearlessDate(m []string, now time.Time) (time.Time, bool) {
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	d, ok := makeDate(now.Year(), month, day)
	if !ok {
		return time.Time{}, false
	}
	if d.Before(now.Truncate(24 * time.Hour)) {
		d, ok = makeDate(now.Year()+1, month, day)
	}
	return d, ok
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflows like 2月30日.
	if int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
