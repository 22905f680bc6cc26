package models

// MappingEntry pairs an original word with its replacement.
type MappingEntry struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// Mapping is an ordered original -> replacement association.
// Keys keep the position of their first insertion.
type Mapping struct {
	entries []MappingEntry
	index   map[string]int
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

// MappingFromEntries builds a mapping from entries in order. Later duplicates overwrite earlier replacements.
func MappingFromEntries(entries []MappingEntry) *Mapping {
	m := NewMapping()
	for _, e := range entries {
		m.Set(e.Original, e.Replacement)
	}
	return m
}

// Set assigns replacement to original. Existing keys keep their position.
func (m *Mapping) Set(original, replacement string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[original]; ok {
		m.entries[i].Replacement = replacement
		return
	}
	m.index[original] = len(m.entries)
	m.entries = append(m.entries, MappingEntry{Original: original, Replacement: replacement})
}

// Add inserts original with an empty replacement unless it is already present.
func (m *Mapping) Add(original string) {
	if _, ok := m.Get(original); ok {
		return
	}
	m.Set(original, "")
}

// Get returns the replacement for original.
func (m *Mapping) Get(original string) (string, bool) {
	if m == nil || m.index == nil {
		return "", false
	}
	i, ok := m.index[original]
	if !ok {
		return "", false
	}
	return m.entries[i].Replacement, true
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in insertion order.
func (m *Mapping) Entries() []MappingEntry {
	if m == nil {
		return nil
	}
	return append([]MappingEntry(nil), m.entries...)
}

// Invert returns the replacement -> original mapping. When two originals share a replacement the first wins.
func (m *Mapping) Invert() *Mapping {
	out := NewMapping()
	for _, e := range m.Entries() {
		if _, ok := out.Get(e.Replacement); ok {
			continue
		}
		out.Set(e.Replacement, e.Original)
	}
	return out
}
