// Package extraction splits documents into chunks and runs resumable entity extraction over them.
package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/hyperjump/kakusu/internal/models"
)

// Chunker splits text into overlapping chunks of at most size characters, breaking on paragraph,
// line and word boundaries before falling back to characters.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates size and overlap (in characters).
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 {
		return nil, errors.New("chunk overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into indexed chunks. Blank text yields no chunks.
func (c *Chunker) Chunk(text string) ([]models.Chunk, error) {
	text = Preprocess(text)
	if text == "" {
		return nil, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
	)
	segments, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	chunks := make([]models.Chunk, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{Index: len(chunks), Text: seg})
	}
	return chunks, nil
}

// Preprocess trims text and normalizes line endings. Interior spacing is kept so entity
// strings still match the source text.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}
