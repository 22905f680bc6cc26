package redact

import (
	"strings"

	"github.com/hyperjump/kakusu/internal/models"
)

// Reverse restores originals in text given a replacement -> original mapping.
// Placeholders and plain replacements are matched together in one pass over the token stream,
// longest first, so restored text is never matched again.
func Reverse(text string, inverse *models.Mapping) string {
	var pairs [][2]string
	for _, e := range inverse.Entries() {
		if e.Original == "" {
			continue
		}
		pairs = append(pairs, [2]string{e.Original, e.Replacement})
	}

	mt := newMatcher(pairs)
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
