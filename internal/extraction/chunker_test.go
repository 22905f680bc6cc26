package extraction

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewChunker_validation(t *testing.T) {
	tests := []struct {
		size, overlap int
		wantErr       bool
	}{
		{100, 10, false},
		{100, 0, false},
		{0, 0, true},
		{-5, 0, true},
		{10, -1, true},
		{10, 10, true},
		{10, 20, true},
	}
	for _, tt := range tests {
		_, err := NewChunker(tt.size, tt.overlap)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewChunker(%d, %d) err = %v, wantErr %v", tt.size, tt.overlap, err, tt.wantErr)
		}
	}
}

func TestChunker_Chunk(t *testing.T) {
	c, err := NewChunker(40, 0)
	if err != nil {
		t.Fatal(err)
	}
	words := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		words = append(words, []string{"alpha", "beta", "gamma", "delta"}[i%4])
	}
	text := strings.Join(words, " ")

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	var joined []string
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if n := utf8.RuneCountInString(ch.Text); n > 40 {
			t.Errorf("chunk %d is %d characters", i, n)
		}
		joined = append(joined, ch.Text)
	}
	if got := strings.Fields(strings.Join(joined, " ")); strings.Join(got, " ") != text {
		t.Error("chunks do not reconstruct the text")
	}
}

func TestChunker_ChunkOverlapCoversSource(t *testing.T) {
	words := make([]string, 0, 80)
	for i := 0; i < 80; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	text := strings.Join(words, " ")

	tests := []struct {
		size, overlap int
	}{
		{40, 10},
		{40, 20},
		{25, 8},
		{100, 50},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size %d overlap %d", tt.size, tt.overlap), func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			if err != nil {
				t.Fatal(err)
			}
			chunks, err := c.Chunk(text)
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) < 2 {
				t.Fatalf("expected several chunks, got %d", len(chunks))
			}
			prevStart, prevEnd, overlapped := -1, 0, false
			for i, ch := range chunks {
				if n := utf8.RuneCountInString(ch.Text); n > tt.size {
					t.Errorf("chunk %d is %d characters", i, n)
				}
				off := strings.Index(text[prevStart+1:], ch.Text)
				if off < 0 {
					t.Fatalf("chunk %d %q is not a substring after the previous chunk", i, ch.Text)
				}
				start := prevStart + 1 + off
				if i == 0 && start != 0 {
					t.Errorf("first chunk starts at %d", start)
				}
				if start > prevEnd+1 {
					t.Errorf("gap before chunk %d: %q", i, text[prevEnd:start])
				}
				if i > 0 && start < prevEnd {
					overlapped = true
				}
				prevStart, prevEnd = start, start+len(ch.Text)
			}
			if prevEnd != len(text) {
				t.Errorf("chunks end at %d, text has %d bytes", prevEnd, len(text))
			}
			if !overlapped {
				t.Error("no chunk overlaps its predecessor")
			}
		})
	}
}

func TestChunker_ChunkEmpty(t *testing.T) {
	c, _ := NewChunker(10, 2)
	chunks, err := c.Chunk("   \n\t  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("blank text should give no chunks, got %v", chunks)
	}
}

func TestChunker_ShortText(t *testing.T) {
	c, _ := NewChunker(1000, 200)
	chunks, _ := c.Chunk("John met Sarah.")
	if len(chunks) != 1 || chunks[0].Text != "John met Sarah." {
		t.Errorf("got %v", chunks)
	}
}

func TestPreprocess(t *testing.T) {
	if got := Preprocess("  a\r\nb  c \r"); got != "a\nb  c" {
		t.Errorf("got %q", got)
	}
}
