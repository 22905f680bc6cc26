package redact

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kakusu/internal/models"
)

func forwardPairs(m *models.Mapping) [][2]string {
	var pairs [][2]string
	for _, e := range m.Entries() {
		if e.Replacement == "" {
			continue
		}
		pairs = append(pairs, [2]string{e.Original, e.Replacement})
	}
	return pairs
}

// Replace substitutes every whole-word occurrence of each mapping key with its replacement.
// Entries with an empty replacement are left alone.
func Replace(text string, m *models.Mapping) string {
	mt := newMatcher(forwardPairs(m))
	if mt.empty() {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for seg := range mt.segments(text) {
		if seg.Tagged {
			b.WriteString(seg.Replacement)
		} else {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// Preview splits text into segments, tagging each whole-word match with the replacement it would get.
// The segment texts concatenate back to text.
func Preview(text string, m *models.Mapping) []Segment {
	return slices.Collect(newMatcher(forwardPairs(m)).segments(text))
}

// Head returns the first floor(runes*pct/100) runes of text. pct outside (0,100] means 100.
func Head(text string, pct float64) string {
	if pct <= 0 || pct >= 100 {
		return text
	}
	n := int(float64(utf8.RuneCountInString(text)) * pct / 100)
	for i := range text {
		if n == 0 {
			return text[:i]
		}
		n--
	}
	return text
}
