// Package artifact writes and reads the anonymization artifact: a ZIP holding the redacted text
// and the Replacement,Original mapping that reverses it.
package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/kakusu/internal/models"
)

// Member names inside the artifact.
const (
	TextMember    = "modified_text.txt"
	MappingMember = "mappings.csv"
)

// Packager builds artifacts. The zero value is ready to use.
type Packager struct {
	// writeMapping defaults to WriteMapping; tests replace it to force a failure.
	writeMapping func(io.Writer, *models.Mapping) error
}

// Encode writes the complete archive to w. The archive is built in memory first, so nothing reaches
// w unless both members serialized.
func (p *Packager) Encode(w io.Writer, text string, m *models.Mapping) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	tw, err := zw.Create(TextMember)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", TextMember, err)
	}
	if _, err := io.WriteString(tw, text); err != nil {
		return fmt.Errorf("failed to write %s: %w", TextMember, err)
	}

	mw, err := zw.Create(MappingMember)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", MappingMember, err)
	}
	write := p.writeMapping
	if write == nil {
		write = WriteMapping
	}
	if err := write(mw, m); err != nil {
		return fmt.Errorf("failed to write %s: %w", MappingMember, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// WriteFile writes the archive to path through a temp file in the same directory renamed into place.
// On any failure no file exists at path and the temp file is removed.
func (p *Packager) WriteFile(path, text string, m *models.Mapping) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = p.Encode(tmp, text, m); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// Contents is what an artifact holds.
type Contents struct {
	Text string
	// Mapping is original -> replacement.
	Mapping *models.Mapping
}

// ReadFile opens the artifact at path.
func ReadFile(path string) (*Contents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Decode(data)
}

// Decode reads an artifact from its bytes.
func Decode(data []byte) (*Contents, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	var c Contents
	var haveText bool
	for _, f := range zr.File {
		switch f.Name {
		case TextMember:
			b, err := readMember(f)
			if err != nil {
				return nil, err
			}
			c.Text, haveText = string(b), true
		case MappingMember:
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", MappingMember, err)
			}
			c.Mapping, err = ReadMapping(rc)
			_ = rc.Close()
			if err != nil {
				return nil, err
			}
		}
	}
	if !haveText || c.Mapping == nil {
		return nil, errors.New("artifact must contain " + TextMember + " and " + MappingMember)
	}
	return &c, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return b, nil
}
