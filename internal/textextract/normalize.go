// Package textextract turns free-form Japanese subsidy prose into structured
// facts: yen amounts, subsidy rates, deadlines, and recruitment status. Every
// extractor returns an ok=false result on no-match; a miss is a normal
// outcome, never an error.
package textextract

import (
	"strings"
	"unicode"
)

// NormalizeText prepares raw page text for pattern matching. Full-width
// digits and punctuation are folded to ASCII, the ideographic space becomes a
// plain space, and whitespace runs collapse to one space. All extractors run
// against the same normalized form so their matches stay comparable.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r >= '０' && r <= '９':
			r = r - '０' + '0'
		case r == '，':
			r = ','
		case r == '．':
			r = '.'
		case r == '：':
			r = ':'
		case r == '／':
			r = '/'
		case r == '　':
			r = ' '
		}
		if unicode.IsSpace(r) {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteRune(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
