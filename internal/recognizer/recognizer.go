// Package recognizer finds named entities (people, organizations) in text.
//
// Backends: a whole-word lexicon, a local token-classification model run through ONNX Runtime,
// and an LLM prompted for JSON. Any backend can be wrapped in an LRU cache.
package recognizer

import (
	"context"
	"strings"

	"github.com/hyperjump/kakusu/internal/models"
)

// Recognizer reports entity spans found in text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]models.Span, error)
	Close() error
}

// Classify maps a raw model label to a category. PERSON and PER are people, ORG is companies;
// BIO prefixes ("B-", "I-") are ignored. Every other label is dropped.
func Classify(label string) (models.Category, bool) {
	l := strings.ToUpper(strings.TrimSpace(label))
	l = strings.TrimPrefix(strings.TrimPrefix(l, "B-"), "I-")
	switch l {
	case "PERSON", "PER":
		return models.People, true
	case "ORG":
		return models.Companies, true
	default:
		return "", false
	}
}
