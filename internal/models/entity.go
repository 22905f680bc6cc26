// Package models defines core data structures for chunks, entities, checkpoints and mappings.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Category is one of the fixed entity categories the pipeline acts on.
type Category string

const (
	// People holds person names (model label PERSON / PER).
	People Category = "people"
	// Companies holds organization names (model label ORG).
	Companies Category = "companies"
)

// Categories returns every category in canonical order.
func Categories() []Category {
	return []Category{People, Companies}
}

// ParseCategory returns the category named s (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case People:
		return People, nil
	case Companies:
		return Companies, nil
	default:
		return "", fmt.Errorf("unknown entity type %q (supported: people, companies)", s)
	}
}

// Chunk is a bounded, ordered piece of the source text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Span is a single entity hit reported by a recognizer.
// Label is the model's raw label (e.g. "B-PER", "ORG").
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EntitySet holds distinct entity surface strings per category.
// The zero value is ready to use.
type EntitySet struct {
	sets map[Category]map[string]struct{}
}

// NewEntitySet returns an empty set.
func NewEntitySet() *EntitySet {
	return &EntitySet{}
}

// Add records text under cat. Blank text is ignored. Returns true if text was new.
func (s *EntitySet) Add(cat Category, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if s.sets == nil {
		s.sets = make(map[Category]map[string]struct{})
	}
	set, ok := s.sets[cat]
	if !ok {
		set = make(map[string]struct{})
		s.sets[cat] = set
	}
	if _, dup := set[text]; dup {
		return false
	}
	set[text] = struct{}{}
	return true
}

// Has reports whether text is recorded under cat.
func (s *EntitySet) Has(cat Category, text string) bool {
	if s == nil || s.sets == nil {
		return false
	}
	_, ok := s.sets[cat][text]
	return ok
}

// Len returns the number of entities under cat.
func (s *EntitySet) Len(cat Category) int {
	if s == nil || s.sets == nil {
		return 0
	}
	return len(s.sets[cat])
}

// Total returns the number of entities across all categories.
func (s *EntitySet) Total() int {
	n := 0
	for _, c := range Categories() {
		n += s.Len(c)
	}
	return n
}

// Sorted returns the entities under cat in lexical order.
func (s *EntitySet) Sorted(cat Category) []string {
	out := make([]string, 0, s.Len(cat))
	if s != nil && s.sets != nil {
		for text := range s.sets[cat] {
			out = append(out, text)
		}
	}
	sort.Strings(out)
	return out
}

// Merge adds every entity of other into s.
func (s *EntitySet) Merge(other *EntitySet) {
	if other == nil {
		return
	}
	for _, c := range Categories() {
		for _, text := range other.Sorted(c) {
			s.Add(c, text)
		}
	}
}

// Clone returns an independent copy.
func (s *EntitySet) Clone() *EntitySet {
	out := NewEntitySet()
	out.Merge(s)
	return out
}

// Equal reports whether both sets hold the same entities per category.
func (s *EntitySet) Equal(other *EntitySet) bool {
	for _, c := range Categories() {
		if s.Len(c) != other.Len(c) {
			return false
		}
		for _, text := range s.Sorted(c) {
			if !other.Has(c, text) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the set as {"people": [...], "companies": [...]} with sorted arrays.
func (s *EntitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		string(People):    s.Sorted(People),
		string(Companies): s.Sorted(Companies),
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON. Unknown keys are ignored.
func (s *EntitySet) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.sets = nil
	for _, c := range Categories() {
		for _, text := range raw[string(c)] {
			s.Add(c, text)
		}
	}
	return nil
}
