package models

import "encoding/json"

// Progress is a checkpoint snapshot: how many chunks were processed and what was found so far.
type Progress struct {
	ProcessedChunks int
	Entities        *EntitySet
}

// NewProgress returns the zero state: nothing processed, empty sets for every category.
func NewProgress() *Progress {
	return &Progress{Entities: NewEntitySet()}
}

type progressJSON struct {
	ProcessedChunks int      `json:"processed_chunks"`
	People          []string `json:"people"`
	Companies       []string `json:"companies"`
}

// MarshalJSON encodes {"processed_chunks": n, "people": [...], "companies": [...]}.
func (p *Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		ProcessedChunks: p.ProcessedChunks,
		People:          p.Entities.Sorted(People),
		Companies:       p.Entities.Sorted(Companies),
	})
}

// UnmarshalJSON decodes the checkpoint document. Missing arrays become empty sets.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw progressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ProcessedChunks = raw.ProcessedChunks
	p.Entities = NewEntitySet()
	for _, text := range raw.People {
		p.Entities.Add(People, text)
	}
	for _, text := range raw.Companies {
		p.Entities.Add(Companies, text)
	}
	return nil
}

// Clone returns a deep copy of p.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return NewProgress()
	}
	return &Progress{ProcessedChunks: p.ProcessedChunks, Entities: p.Entities.Clone()}
}
