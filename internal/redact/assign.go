package redact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/kakusu/internal/models"
)

var placeholderRe = regexp.MustCompile(`^\[XXX\d+XXX\]$`)

// Placeholder returns the generated identifier for n.
func Placeholder(n int) string {
	return fmt.Sprintf("[XXX%dXXX]", n)
}

// IsPlaceholder reports whether s is exactly a generated identifier.
func IsPlaceholder(s string) bool {
	return placeholderRe.MatchString(s)
}

// Assign returns a copy of edits where every blank or whitespace-only replacement is given the next
// placeholder, counting from seed in insertion order. Keys are trimmed and blank keys dropped.
// A seed below 1 starts at 1.
func Assign(edits *models.Mapping, seed int) *models.Mapping {
	if seed < 1 {
		seed = 1
	}
	out := models.NewMapping()
	n := seed
	for _, e := range edits.Entries() {
		key := strings.TrimSpace(e.Original)
		if key == "" {
			continue
		}
		repl := e.Replacement
		if strings.TrimSpace(repl) == "" {
			repl = Placeholder(n)
			n++
		}
		out.Set(key, repl)
	}
	return out
}

// ParseKeywords splits a comma separated keyword list, trimming and dropping blanks.
func ParseKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
