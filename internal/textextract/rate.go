package textextract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rate is an extracted subsidy rate. Percent is in (0, 100]; FixedAmount
// marks the 定額 ("fixed amount") sentinel, where Percent is zero.
type Rate struct {
	Percent     float64
	Text        string
	FixedAmount bool
}

type ratePattern struct {
	priority int
	re       *regexp.Regexp
	build    func(m []string, text string, pos []int) (Rate, bool)
}

// Unlike amounts, rate selection is priority-first: the single
// highest-priority match wins, first-found on ties.
var ratePatterns = []ratePattern{
	{100, regexp.MustCompile(`(?:補助率|助成率|補助割合)\s*:?\s*([0-9]+)分の([0-9]+)`), buildBunnoRate},
	{100, regexp.MustCompile(`(?:補助率|助成率|補助割合)\s*:?\s*([0-9]+(?:\.[0-9]+)?)\s*[%％]`), buildPercentRate},
	{90, regexp.MustCompile(`(?:補助率|助成率|補助割合)\s*:?\s*([0-9]+)\s*/\s*([0-9]+)`), buildSlashRate},
	{80, regexp.MustCompile(`([0-9]+)分の([0-9]+)`), buildBunnoRate},
	{60, regexp.MustCompile(`([0-9]{1,2})\s*/\s*([0-9]{1,2})`), buildSlashRate},
	{50, regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*[%％]`), buildPercentRate},
	{40, regexp.MustCompile(`定額`), buildFixedRate},
}

// ExtractRate scans text for a subsidy rate and returns the highest-priority
// match. Slash fractions that look like calendar dates are rejected.
func ExtractRate(text string) (Rate, bool) {
	normalized := NormalizeText(text)
	best := Rate{}
	bestPriority := -1
	for _, p := range ratePatterns {
		if p.priority <= bestPriority {
			continue
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(normalized, -1) {
			m := submatches(normalized, loc)
			rate, ok := p.build(m, normalized, loc)
			if !ok {
				continue
			}
			best = rate
			bestPriority = p.priority
			break
		}
	}
	if bestPriority < 0 {
		return Rate{}, false
	}
	return best, true
}

// buildBunnoRate handles the "N分のM" phrasing. The denominator comes first
// lexically: 3分の1 means 1/3.
func buildBunnoRate(m []string, _ string, _ []int) (Rate, bool) {
	denom, _ := strconv.Atoi(m[1])
	numer, _ := strconv.Atoi(m[2])
	return fractionRate(numer, denom)
}

func buildSlashRate(m []string, text string, loc []int) (Rate, bool) {
	if looksLikeDate(text, loc) {
		return Rate{}, false
	}
	numer, _ := strconv.Atoi(m[1])
	denom, _ := strconv.Atoi(m[2])
	return fractionRate(numer, denom)
}

func buildPercentRate(m []string, _ string, _ []int) (Rate, bool) {
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct <= 0 || pct > 100 {
		return Rate{}, false
	}
	return Rate{Percent: pct, Text: m[1] + "%"}, true
}

func buildFixedRate([]string, string, []int) (Rate, bool) {
	return Rate{FixedAmount: true, Text: "定額"}, true
}

func fractionRate(numer, denom int) (Rate, bool) {
	if numer <= 0 || denom <= 0 || numer > denom {
		return Rate{}, false
	}
	return Rate{
		Percent: float64(numer) / float64(denom) * 100,
		Text:    fmt.Sprintf("%d/%d", numer, denom),
	}, true
}

// looksLikeDate rejects slash fractions embedded in date-like runs, e.g.
// "2025/4/1" or "4/1受付開始". RE2 has no lookaround, so the guard inspects
// the bytes around the match instead.
func looksLikeDate(text string, loc []int) bool {
	start, end := loc[0], loc[1]
	before := text[:start]
	after := text[end:]
	if len(before) > 0 {
		last := before[len(before)-1]
		if (last >= '0' && last <= '9') || last == '/' {
			return true
		}
	}
	if len(after) > 0 {
		first := after[0]
		if (first >= '0' && first <= '9') || first == '/' {
			return true
		}
	}
	for _, marker := range []string{"日", "月", "年"} {
		if strings.HasPrefix(after, marker) || strings.HasSuffix(before, marker) {
			return true
		}
	}
	return false
}

func submatches(text string, loc []int) []string {
	out := make([]string, 0, len(loc)/2)
	for i := 0; i < len(loc); i += 2 {
		if loc[i] < 0 {
			out = append(out, "")
			continue
		}
		out = append(out, text[loc[i]:loc[i+1]])
	}
	return out
}
