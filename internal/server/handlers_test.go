package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kakusu/internal/anonymizer"
	"github.com/hyperjump/kakusu/internal/artifact"
	"github.com/hyperjump/kakusu/internal/checkpoint"
	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/metrics"
	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/recognizer"
	"go.uber.org/zap"
)

const worked = "John met Sarah at Acme Corp. John liked Acme Corp."

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Checkpoint.Backend = config.BackendMemory
	stores := map[string]checkpoint.Store{}
	lex := recognizer.NewLexicon([]string{"John", "Sarah"}, []string{"Acme Corp"})
	m := metrics.New()
	svc := anonymizer.New(cfg, lex,
		anonymizer.WithMetrics(m),
		anonymizer.WithStoreOpener(func(key string) (checkpoint.Store, error) {
			if stores[key] == nil {
				stores[key] = checkpoint.NewMemory()
			}
			return stores[key], nil
		}))
	return NewServer(svc, cfg, m, zap.NewNop()).Router()
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleExtract(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/extract", "application/json",
		mustJSON(t, map[string]any{"text": worked, "keywords": []string{"secret"}}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body)
	}
	var out extractResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Complete || out.TotalChunks != 1 {
		t.Errorf("progress: %+v", out)
	}
	if strings.Join(out.People, ",") != "John,Sarah" || strings.Join(out.Companies, ",") != "Acme Corp" {
		t.Errorf("entities: %v %v", out.People, out.Companies)
	}
	if len(out.Edits) != 4 || out.Edits[3].Original != "secret" {
		t.Errorf("edits: %+v", out.Edits)
	}
}

func TestHandleExtract_errors(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", "{", http.StatusBadRequest},
		{"empty text", `{"text":"   "}`, http.StatusUnprocessableEntity},
		{"bad key", `{"text":"John","key":"../x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/extract", "application/json", []byte(tt.body))
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleAnonymize(t *testing.T) {
	h := newTestServer(t)
	body := mustJSON(t, map[string]any{
		"text": worked,
		"edits": []models.MappingEntry{
			{Original: "John"}, {Original: "Sarah", Replacement: "Person2"}, {Original: "Acme Corp"},
		},
	})
	w := do(t, h, http.MethodPost, "/api/v1/anonymize", "application/json", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type: %q", ct)
	}
	zipped := w.Body.Bytes()
	c, err := artifact.Decode(zipped)
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "[XXX1XXX] met Person2 at [XXX2XXX]. [XXX1XXX] liked [XXX2XXX]." {
		t.Errorf("text: %q", c.Text)
	}

	w = do(t, h, http.MethodPost, "/api/v1/reverse", "application/zip", zipped)
	if w.Code != http.StatusOK {
		t.Fatalf("reverse status: got %d, body %s", w.Code, w.Body)
	}
	var out map[string]string
	_ = json.NewDecoder(w.Body).Decode(&out)
	if out["text"] != worked {
		t.Errorf("reverse: %q", out["text"])
	}
}

func TestHandleReverse_json(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name string
		body map[string]any
	}{
		{"entries", map[string]any{
			"text":    "[XXX1XXX] met Person2.",
			"mapping": []models.MappingEntry{{Original: "John", Replacement: "[XXX1XXX]"}, {Original: "Sarah", Replacement: "Person2"}},
		}},
		{"csv replacement first", map[string]any{
			"text":        "[XXX1XXX] met Person2.",
			"mapping_csv": "Replacement,Original\n[XXX1XXX],John\nPerson2,Sarah\n",
		}},
		{"csv original first", map[string]any{
			"text":        "[XXX1XXX] met Person2.",
			"mapping_csv": "Original,Replacement\nJohn,[XXX1XXX]\nSarah,Person2\n",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/reverse", "application/json", mustJSON(t, tt.body))
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d, body %s", w.Code, w.Body)
			}
			var out map[string]string
			_ = json.NewDecoder(w.Body).Decode(&out)
			if out["text"] != "John met Sarah." {
				t.Errorf("text: %q", out["text"])
			}
		})
	}
}

func TestHandleReverse_badArtifact(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/reverse", "application/zip", []byte("not a zip"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandlePreview(t *testing.T) {
	h := newTestServer(t)
	body := mustJSON(t, map[string]any{"text": worked, "keywords": []string{"Acme Corp"}, "percent": 100})
	w := do(t, h, http.MethodPost, "/api/v1/preview", "application/json", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Segments []struct {
			Text        string `json:"text"`
			Replacement string `json:"replacement"`
			Tagged      bool   `json:"tagged"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	tagged := 0
	for _, s := range out.Segments {
		b.WriteString(s.Text)
		if s.Tagged {
			tagged++
			if s.Replacement != "[XXX1XXX]" {
				t.Errorf("replacement: %q", s.Replacement)
			}
		}
	}
	if b.String() != worked || tagged != 2 {
		t.Errorf("preview: %q, tagged %d", b.String(), tagged)
	}
}

func TestHandleResetCheckpoint(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/extract", "application/json", mustJSON(t, map[string]any{"text": worked, "key": "doc-1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("extract status: %d", w.Code)
	}
	for _, want := range []bool{true, false} {
		w = do(t, h, http.MethodDelete, "/api/v1/checkpoints/doc-1", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status: got %d", w.Code)
		}
		var out struct {
			Cleared bool `json:"cleared"`
		}
		_ = json.NewDecoder(w.Body).Decode(&out)
		if out.Cleared != want {
			t.Errorf("cleared: got %v, want %v", out.Cleared, want)
		}
	}
}

func TestHandleHealthAndMetrics(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body)
	}
	_ = do(t, h, http.MethodPost, "/api/v1/extract", "application/json", mustJSON(t, map[string]any{"text": worked}))
	w = do(t, h, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "kakusu_chunks_processed_total") {
		t.Errorf("metrics: %d", w.Code)
	}
}
