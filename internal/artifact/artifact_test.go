package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kakusu/internal/models"
)

func sampleMapping() *models.Mapping {
	m := models.NewMapping()
	m.Set("John", "[XXX1XXX]")
	m.Set("Sarah", "Person2")
	m.Set("Acme, Inc.", "[XXX2XXX]")
	return m
}

func TestWriteMapping(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMapping(&buf, sampleMapping()); err != nil {
		t.Fatal(err)
	}
	want := "Replacement,Original\n[XXX1XXX],John\nPerson2,Sarah\n[XXX2XXX],\"Acme, Inc.\"\n"
	if buf.String() != want {
		t.Errorf("got %q", buf.String())
	}
}

func TestReadMapping_bothOrders(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"forward", "Replacement,Original\nP1,John\n\"R,2\",\"Acme, Inc.\"\n"},
		{"reverse", "Original,Replacement\nJohn,P1\n\"Acme, Inc.\",\"R,2\"\n"},
		{"lowercase with bom", "\ufefforiginal,replacement\nJohn,P1\n\"Acme, Inc.\",\"R,2\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReadMapping(strings.NewReader(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if r, _ := m.Get("John"); r != "P1" {
				t.Errorf("John -> %q", r)
			}
			if r, _ := m.Get("Acme, Inc."); r != "R,2" {
				t.Errorf("Acme -> %q", r)
			}
			if m.Len() != 2 {
				t.Errorf("len = %d", m.Len())
			}
		})
	}
}

func TestReadMapping_blankReplacementKept(t *testing.T) {
	m, err := ReadMapping(strings.NewReader("Original,Replacement\nJohn,\n,ignored\nSarah,Jane\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := m.Get("John"); !ok || r != "" {
		t.Errorf("John -> %q, %v", r, ok)
	}
	if m.Len() != 2 {
		t.Errorf("len = %d", m.Len())
	}
}

func TestReadMapping_badHeader(t *testing.T) {
	for _, in := range []string{"", "From,To\na,b\n"} {
		if _, err := ReadMapping(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	m := models.NewMapping()
	m.Add("John")
	m.Set("Sarah", "Person2")
	var buf bytes.Buffer
	if err := WriteTemplate(&buf, m); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "Original,Replacement\n") {
		t.Errorf("template = %q", buf.String())
	}
	back, err := ReadMapping(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := back.Get("Sarah"); r != "Person2" || back.Len() != 2 {
		t.Errorf("back = %v", back.Entries())
	}
}

func TestWriteFileAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "anonymized.zip")
	text := "[XXX1XXX] met Person2."
	var p Packager
	if err := p.WriteFile(path, text, sampleMapping()); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	_ = zr.Close()
	if strings.Join(names, ",") != TextMember+","+MappingMember {
		t.Errorf("members = %v", names)
	}

	c, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != text {
		t.Errorf("text = %q", c.Text)
	}
	if r, _ := c.Mapping.Get("Acme, Inc."); r != "[XXX2XXX]" {
		t.Errorf("mapping = %v", c.Mapping.Entries())
	}
}

func failingMapping(w io.Writer, _ *models.Mapping) error {
	_, _ = io.WriteString(w, "Replacement,Orig")
	return errors.New("disk full")
}

func TestWriteFile_atomicOnSecondMemberFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anonymized.zip")
	p := Packager{writeMapping: failingMapping}
	if err := p.WriteFile(path, "redacted", sampleMapping()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial artifact exists: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestEncode_writesNothingOnFailure(t *testing.T) {
	var buf bytes.Buffer
	p := Packager{writeMapping: failingMapping}
	if err := p.Encode(&buf, "redacted", sampleMapping()); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes written on failure", buf.Len())
	}
}

func TestDecode_missingMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create(TextMember)
	_, _ = w.Write([]byte("x"))
	_ = zw.Close()
	if _, err := Decode(buf.Bytes()); err == nil {
		t.Error("expected error without mapping member")
	}
	if _, err := Decode([]byte("not a zip")); err == nil {
		t.Error("expected error for non-zip data")
	}
}
