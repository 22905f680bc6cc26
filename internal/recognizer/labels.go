package recognizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/redact"
)

// LoadLabels reads id2label from a Hugging Face config.json and returns labels indexed by class id.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("no id2label in %s", path)
	}
	labels := make([]string, len(cfg.ID2Label))
	for k, v := range cfg.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil || id < 0 || id >= len(labels) {
			return nil, fmt.Errorf("bad label id %q in %s", k, path)
		}
		labels[id] = v
	}
	return labels, nil
}

// decodeBIO groups per-word BIO labels into entity spans over text.
// A B- tag, or an I- tag whose type differs from the open entity, starts a new entity.
func decodeBIO(text string, words []redact.Token, labels []string) []models.Span {
	var spans []models.Span
	open := -1
	var openType string
	closeAt := func(last int) {
		if open < 0 {
			return
		}
		start, end := words[open].Start, words[last].End
		spans = append(spans, models.Span{Text: text[start:end], Label: openType, Start: start, End: end})
		open = -1
		openType = ""
	}
	for i := range words {
		if i >= len(labels) {
			break
		}
		tag, typ := splitTag(labels[i])
		switch {
		case tag == "O" || typ == "":
			closeAt(i - 1)
		case tag == "B" || open < 0 || typ != openType:
			closeAt(i - 1)
			open, openType = i, typ
		}
	}
	if open >= 0 {
		last := len(words) - 1
		if len(labels)-1 < last {
			last = len(labels) - 1
		}
		closeAt(last)
	}
	return spans
}

func splitTag(label string) (tag, typ string) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" || label == "O" {
		return "O", ""
	}
	if len(label) > 2 && label[1] == '-' && (label[0] == 'B' || label[0] == 'I') {
		return label[:1], label[2:]
	}
	return "I", label
}

func argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
