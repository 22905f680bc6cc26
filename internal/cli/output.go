// Package cli formats command results for the terminal or for other programs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kakusu/internal/anonymizer"
	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/redact"
	"github.com/hyperjump/kakusu/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a format. Anything but "json" is text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

// maxEntityWidth caps how much of a single entity is printed in text mode.
const maxEntityWidth = 60

// ExtractSummary is the printable outcome of an extract run.
type ExtractSummary struct {
	Key             string   `json:"key"`
	People          []string `json:"people"`
	Companies       []string `json:"companies"`
	ProcessedChunks int      `json:"processed_chunks"`
	TotalChunks     int      `json:"total_chunks"`
	Failed          int      `json:"failed"`
	Complete        bool     `json:"complete"`
	Template        string   `json:"template,omitempty"`
}

// NewExtractSummary flattens res. template is the path of the written edit template, if any.
func NewExtractSummary(res *anonymizer.ExtractResponse, template string) ExtractSummary {
	s := ExtractSummary{
		Key:         res.Key,
		People:      orEmpty(res.Entities.Sorted(models.People)),
		Companies:   orEmpty(res.Entities.Sorted(models.Companies)),
		TotalChunks: res.Result.Total,
		Failed:      res.Result.Failed,
		Complete:    res.Complete(),
		Template:    template,
	}
	if res.Result.State != nil {
		s.ProcessedChunks = res.Result.State.ProcessedChunks
	}
	return s
}

// WriteExtract writes an extract summary to w in the given format.
func WriteExtract(w io.Writer, s ExtractSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "\nScanned %d of %d chunks", s.ProcessedChunks, s.TotalChunks)
	if s.Failed > 0 {
		fmt.Fprintf(w, " (%d failed)", s.Failed)
	}
	fmt.Fprintln(w)
	if !s.Complete {
		fmt.Fprintf(w, "Extraction is partial; run again to resume (key %s).\n", s.Key)
	}
	writeList(w, "People", s.People)
	writeList(w, "Companies", s.Companies)
	if s.Template != "" {
		fmt.Fprintf(w, "\nEdit replacements in %s, then run: kakusu anonymize --mapping %s <file>\n", s.Template, s.Template)
	}
	return nil
}

func writeList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "\n--- %s (%d) ---\n", title, len(items))
	for _, it := range items {
		fmt.Fprintf(w, "  %s\n", utils.Truncate(it, maxEntityWidth))
	}
}

// AnonymizeSummary is the printable outcome of an anonymize or run command.
type AnonymizeSummary struct {
	Artifact string                `json:"artifact"`
	Mapping  []models.MappingEntry `json:"mapping"`
}

// WriteAnonymize writes where the artifact went and the mapping it holds.
func WriteAnonymize(w io.Writer, path string, a *anonymizer.Anonymized, format OutputFormat) error {
	s := AnonymizeSummary{Artifact: path, Mapping: a.Mapping.Entries()}
	if s.Mapping == nil {
		s.Mapping = []models.MappingEntry{}
	}
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "\nWrote %s (%d replacements)\n", path, len(s.Mapping))
	for _, e := range s.Mapping {
		fmt.Fprintf(w, "  %-14s <- %s\n", e.Replacement, utils.Truncate(e.Original, maxEntityWidth))
	}
	return nil
}

// WritePreview writes preview segments. Text mode marks each replacement inline as {original -> replacement}.
func WritePreview(w io.Writer, segs []redact.Segment, format OutputFormat) error {
	if format == OutputJSON {
		if segs == nil {
			segs = []redact.Segment{}
		}
		return writeJSON(w, map[string]any{"segments": segs})
	}
	var b strings.Builder
	n := 0
	for _, s := range segs {
		if s.Tagged {
			n++
			fmt.Fprintf(&b, "{%s -> %s}", s.Text, s.Replacement)
			continue
		}
		b.WriteString(s.Text)
	}
	fmt.Fprintln(w, b.String())
	fmt.Fprintf(w, "\n%d replacements in preview\n", n)
	return nil
}

// WriteReset reports whether a checkpoint was cleared.
func WriteReset(w io.Writer, key string, cleared bool, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"key": key, "cleared": cleared})
	}
	if cleared {
		fmt.Fprintf(w, "Checkpoint %s cleared\n", key)
	} else {
		fmt.Fprintf(w, "No saved progress for %s\n", key)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
