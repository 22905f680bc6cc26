package recognizer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/redact"
)

// Lexicon recognizes a fixed list of names on whole-word matches. It is deterministic and needs no
// model, which makes it the default backend and the recognizer used in tests.
type Lexicon struct {
	terms *models.Mapping // term -> label
}

type lexiconFile struct {
	People    []string `yaml:"people"`
	Companies []string `yaml:"companies"`
}

// NewLexicon builds a lexicon from people and company names. Blank names are ignored.
func NewLexicon(people, companies []string) *Lexicon {
	terms := models.NewMapping()
	for _, p := range people {
		if p = strings.TrimSpace(p); p != "" {
			terms.Set(p, "PERSON")
		}
	}
	for _, c := range companies {
		if c = strings.TrimSpace(c); c != "" {
			terms.Set(c, "ORG")
		}
	}
	return &Lexicon{terms: terms}
}

// LoadLexicon reads a YAML gazetteer with "people" and "companies" lists.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	return NewLexicon(f.People, f.Companies), nil
}

// Recognize returns a span for every whole-word occurrence of a known name, longest name first.
func (l *Lexicon) Recognize(ctx context.Context, text string) ([]models.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var spans []models.Span
	offset := 0
	for _, seg := range redact.Preview(text, l.terms) {
		if seg.Tagged {
			spans = append(spans, models.Span{
				Text:  seg.Text,
				Label: seg.Replacement,
				Start: offset,
				End:   offset + len(seg.Text),
			})
		}
		offset += len(seg.Text)
	}
	return spans, nil
}

// Close is a no-op for Lexicon.
func (l *Lexicon) Close() error {
	return nil
}
