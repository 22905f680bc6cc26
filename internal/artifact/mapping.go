package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kakusu/internal/models"
)

const (
	colReplacement = "Replacement"
	colOriginal    = "Original"
)

// WriteMapping writes the mapping as CSV with header "Replacement,Original", one row per entry
// in insertion order.
func WriteMapping(w io.Writer, m *models.Mapping) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colReplacement, colOriginal}); err != nil {
		return err
	}
	for _, e := range m.Entries() {
		if err := cw.Write([]string{e.Replacement, e.Original}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTemplate writes an editable "Original,Replacement" CSV for the user to fill in.
func WriteTemplate(w io.Writer, m *models.Mapping) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colOriginal, colReplacement}); err != nil {
		return err
	}
	for _, e := range m.Entries() {
		if err := cw.Write([]string{e.Original, e.Replacement}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMapping reads a two-column mapping CSV with either column order, detected from the header
// (case-insensitive). It returns original -> replacement in file order.
func ReadMapping(r io.Reader) (*models.Mapping, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("mapping file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping header: %w", err)
	}
	origCol, replCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case strings.ToLower(colOriginal):
			origCol = i
		case strings.ToLower(colReplacement):
			replCol = i
		}
	}
	if origCol < 0 || replCol < 0 {
		return nil, fmt.Errorf("mapping header must name %s and %s columns, got %v", colOriginal, colReplacement, header)
	}

	m := models.NewMapping()
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping line %d: %w", line, err)
		}
		if len(rec) <= origCol || len(rec) <= replCol {
			continue
		}
		original := strings.TrimSpace(rec[origCol])
		if original == "" {
			continue
		}
		m.Set(original, rec[replCol])
	}
	return m, nil
}
