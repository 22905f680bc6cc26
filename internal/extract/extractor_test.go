package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"text", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"invalid utf8", []byte("hello\x80world"), ".txt", "hello�world"},
		{"bom", []byte("\xEF\xBB\xBFJohn"), ".txt", "John"},
		{"unknown extension", []byte("raw content"), ".xyz", "raw content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Name")
	f.SetCellValue("Sheet1", "A2", "John")
	f.SetCellValue("Sheet1", "B2", "Acme Corp")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Name\nJohn\tAcme Corp" {
		t.Errorf("got %q", got)
	}
}

func docx(body string, docPath string, contentTypes bool) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if contentTypes {
		ct, _ := w.Create("[Content_Types].xml")
		_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/` + docPath + `" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`))
	}
	fw, _ := w.Create(docPath)
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			"single paragraph",
			docx(`<w:p><w:r><w:t>John met Sarah</w:t></w:r></w:p>`, "word/document.xml", false),
			"John met Sarah",
		},
		{
			"paragraphs and split runs",
			docx(`<w:p w:rsidR="00AB"><w:pPr><w:jc w:val="left"/></w:pPr><w:r><w:t>Jo</w:t></w:r><w:r><w:t>hn</w:t></w:r></w:p>`+
				`<w:p><w:r><w:t xml:space="preserve">Acme </w:t></w:r><w:r><w:t>&amp; Co</w:t></w:r></w:p>`, "word/document.xml", false),
			"John\nAcme & Co",
		},
		{
			"tabs",
			docx(`<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r></w:p>`, "word/document.xml", false),
			"a\tb",
		},
		{
			"content types pointing elsewhere",
			docx(`<w:p><w:r><w:t>Content from document2</w:t></w:r></w:p>`, "word/document2.xml", true),
			"Content from document2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.data, ".docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("other.xml")
	_ = w.Close()
	if _, err := e.ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error when document.xml is missing")
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("John met Sarah."), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "John met Sarah." {
		t.Errorf("got %q", got)
	}
}

func TestExtract_empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.txt")
	if err := os.WriteFile(path, []byte("  \n "), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewExtractor().Extract(path); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error")
	}
}

func TestSupported(t *testing.T) {
	for ext, want := range map[string]bool{".pdf": true, ".DOCX": true, ".odt": true, ".txt": false, ".pptx": false} {
		if Supported(ext) != want {
			t.Errorf("Supported(%q) != %v", ext, want)
		}
	}
}
