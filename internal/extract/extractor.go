// Package extract reads the text of input documents.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrEmptyDocument is returned when a document holds no text.
var ErrEmptyDocument = errors.New("document has no text")

var binaryFormats = []string{".pdf", ".docx", ".xlsx", ".odt", ".rtf"}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext has a dedicated reader. Other extensions are read as plain text.
func Supported(ext string) bool {
	return slices.Contains(binaryFormats, strings.ToLower(ext))
}

// Extract reads the file at path and returns its text. Blank documents yield ErrEmptyDocument.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	text, err := e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDocument)
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".odt", ".rtf":
		return extractWithCat(content)
	default:
		return extractPlain(content)
	}
}
