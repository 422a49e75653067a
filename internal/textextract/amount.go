package textextract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// AmountKind classifies what a matched amount refers to on the page.
type AmountKind string

// Amount kinds, used for attribution and per-target segmentation.
const (
	KindUpperLimit AmountKind = "upper_limit"
	KindNamed      AmountKind = "named_amount"
	KindOkuScale   AmountKind = "oku_scale"
	KindRangeMax   AmountKind = "range_max"
	KindCorporate  AmountKind = "corporate"
	KindIndividual AmountKind = "individual"
	KindMonthly    AmountKind = "monthly"
	KindYearly     AmountKind = "yearly"
	KindSuffixMax  AmountKind = "suffix_max"
	KindQuoted     AmountKind = "quoted"
	KindGeneric    AmountKind = "generic"
)

// AmountCandidate is one pattern match found in the text.
type AmountCandidate struct {
	Amount   int64
	Unit     string
	Text     string
	Kind     AmountKind
	Priority int
}

// maxReasonableYen bounds accepted amounts to the open range (0, 100 billion).
const maxReasonableYen = 100_000_000_000

const numGroup = `([0-9][0-9,]*(?:\.[0-9]+)?)`

type amountPattern struct {
	kind     AmountKind
	priority int
	re       *regexp.Regexp
}

// amountPatterns is evaluated in full against the normalized text; order only
// matters for attribution, not for the reported value.
var amountPatterns = []amountPattern{
	{KindUpperLimit, 100, regexp.MustCompile(`(?:上限|限度額|最大|最高)[^0-9]{0,6}` + numGroup + `(億|万)?円`)},
	{KindNamed, 95, regexp.MustCompile(`(?:補助金額|補助額|助成金額|助成額|交付額|支給額)[^0-9]{0,6}` + numGroup + `(億|万)?円`)},
	{KindOkuScale, 90, regexp.MustCompile(numGroup + `(億)円`)},
	{KindRangeMax, 85, regexp.MustCompile(numGroup + `(億|万)?円\s*(?:~|～|〜|から)\s*` + numGroup + `(億|万)?円`)},
	{KindCorporate, 80, regexp.MustCompile(`(?:中小企業|法人|企業)[^0-9]{0,10}` + numGroup + `(億|万)?円`)},
	{KindIndividual, 80, regexp.MustCompile(`(?:個人事業主|個人)[^0-9]{0,10}` + numGroup + `(億|万)?円`)},
	{KindMonthly, 75, regexp.MustCompile(`月額?[^0-9]{0,4}` + numGroup + `(億|万)?円`)},
	{KindYearly, 75, regexp.MustCompile(`年(?:額|間)[^0-9]{0,4}` + numGroup + `(億|万)?円`)},
	{KindSuffixMax, 70, regexp.MustCompile(numGroup + `(億|万)?円(?:まで|以内|を上限)`)},
	{KindQuoted, 60, regexp.MustCompile(`[「『]` + numGroup + `(億|万)?円[」』]`)},
	{KindGeneric, 50, regexp.MustCompile(numGroup + `(億|万)円`)},
	{KindGeneric, 50, regexp.MustCompile(numGroup + `円`)},
}

// ExtractAmount reports the maximum yen value found across every pattern
// match in text. Priority ordering exists for attribution only; the reported
// amount is strictly max-value-wins. Government pages often state a small
// per-item figure alongside a large program ceiling, and the product prefers
// the ceiling.
func ExtractAmount(text string) (int64, bool) {
	candidates := AmountCandidates(text)
	if len(candidates) == 0 {
		return 0, false
	}
	max := candidates[0].Amount
	for _, c := range candidates[1:] {
		if c.Amount > max {
			max = c.Amount
		}
	}
	return max, true
}

// AmountCandidates returns every valid amount match in text, tagged with the
// pattern that produced it.
func AmountCandidates(text string) []AmountCandidate {
	normalized := NormalizeText(text)
	var out []AmountCandidate
	for _, p := range amountPatterns {
		for _, m := range p.re.FindAllStringSubmatch(normalized, -1) {
			out = appendAmountMatch(out, p, m)
		}
	}
	return out
}

func appendAmountMatch(out []AmountCandidate, p amountPattern, m []string) []AmountCandidate {
	// Range patterns carry two number groups; take each side so the max
	// policy can pick the larger.
	for i := 1; i < len(m); i += 2 {
		num := m[i]
		if num == "" {
			continue
		}
		unit := ""
		if i+1 < len(m) {
			unit = m[i+1]
		}
		amount, ok := parseYen(num, unit)
		if !ok {
			continue
		}
		out = append(out, AmountCandidate{
			Amount:   amount,
			Unit:     unit,
			Text:     m[0],
			Kind:     p.kind,
			Priority: p.priority,
		})
	}
	return out
}

// parseYen converts a matched digit group plus unit suffix into yen and
// validates it against the open range (0, 100 billion).
func parseYen(num, unit string) (int64, bool) {
	num = strings.ReplaceAll(num, ",", "")
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch unit {
	case "億":
		value *= 1e8
	case "万":
		value *= 1e4
	}
	yen := int64(math.Round(value))
	if yen <= 0 || yen >= maxReasonableYen {
		return 0, false
	}
	return yen, true
}
