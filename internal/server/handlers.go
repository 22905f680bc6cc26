package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kakusu/internal/anonymizer"
	"github.com/hyperjump/kakusu/internal/artifact"
	"github.com/hyperjump/kakusu/internal/checkpoint"
	"github.com/hyperjump/kakusu/internal/docid"
	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/redact"
	"go.uber.org/zap"
)

type extractRequest struct {
	Text            string   `json:"text"`
	Key             string   `json:"key,omitempty"`
	Reset           bool     `json:"reset,omitempty"`
	CoveragePercent float64  `json:"coverage_percent,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

type extractResponse struct {
	Key             string                `json:"key"`
	People          []string              `json:"people"`
	Companies       []string              `json:"companies"`
	ProcessedChunks int                   `json:"processed_chunks"`
	TotalChunks     int                   `json:"total_chunks"`
	Failed          int                   `json:"failed"`
	Complete        bool                  `json:"complete"`
	Edits           []models.MappingEntry `json:"edits"`
}

type editRequest struct {
	Text     string                `json:"text"`
	Edits    []models.MappingEntry `json:"edits"`
	Keywords []string              `json:"keywords,omitempty"`
	Seed     int                   `json:"seed,omitempty"`
	Percent  float64               `json:"percent,omitempty"`
}

// mapping merges explicit edits with keywords that have no entry yet.
func (r *editRequest) mapping() *models.Mapping {
	m := models.MappingFromEntries(r.Edits)
	for _, kw := range r.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			m.Add(kw)
		}
	}
	return m
}

type reverseRequest struct {
	Text       string                `json:"text"`
	Mapping    []models.MappingEntry `json:"mapping,omitempty"`
	MappingCSV string                `json:"mapping_csv,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Key != "" && !docid.Valid(req.Key) {
		s.respondError(w, http.StatusBadRequest, "invalid key")
		return
	}
	s.logger.Debug("extract request", zap.Int("bytes", len(req.Text)), zap.Bool("reset", req.Reset))
	res, err := s.service.Extract(r.Context(), anonymizer.ExtractRequest{
		Text:            req.Text,
		Key:             req.Key,
		Reset:           req.Reset,
		CoveragePercent: req.CoveragePercent,
	})
	if err != nil {
		s.respondServiceError(w, "extract", err)
		return
	}
	keywords := append(append([]string(nil), s.config.Anonymize.Keywords...), req.Keywords...)
	edits := anonymizer.Edits(res.Entities, s.service.Categories(), keywords).Entries()
	if edits == nil {
		edits = []models.MappingEntry{}
	}
	s.respondJSON(w, http.StatusOK, extractResponse{
		Key:             res.Key,
		People:          nonNil(res.Entities.Sorted(models.People)),
		Companies:       nonNil(res.Entities.Sorted(models.Companies)),
		ProcessedChunks: res.Result.State.ProcessedChunks,
		TotalChunks:     res.Result.Total,
		Failed:          res.Result.Failed,
		Complete:        res.Complete(),
		Edits:           edits,
	})
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.service.Anonymize(req.Text, req.mapping(), req.Seed)
	if err != nil {
		s.respondServiceError(w, "anonymize", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "anonymized.zip"}))
	if err := s.service.Package(w, a); err != nil {
		w.Header().Del("Content-Disposition")
		s.respondServiceError(w, "anonymize", err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, anonymizer.ErrEmptyInput.Error())
		return
	}
	segs := s.service.Preview(req.Text, req.mapping(), req.Seed, req.Percent)
	if segs == nil {
		segs = []redact.Segment{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"segments": segs})
}

// handleReverse accepts either an artifact ZIP body or a JSON body with the text and its mapping.
func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	var text string
	var mapping *models.Mapping

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/zip" {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot read body")
			return
		}
		c, err := artifact.Decode(data)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		text, mapping = c.Text, c.Mapping
	} else {
		var req reverseRequest
		if !s.decode(w, r, &req) {
			return
		}
		text = req.Text
		mapping = models.MappingFromEntries(req.Mapping)
		if req.MappingCSV != "" {
			m, err := artifact.ReadMapping(strings.NewReader(req.MappingCSV))
			if err != nil {
				s.respondError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			mapping = m
		}
	}

	out, err := s.service.Reverse(text, mapping)
	if err != nil {
		s.respondServiceError(w, "reverse", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"text": out})
}

func (s *Server) handleResetCheckpoint(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !docid.Valid(key) {
		s.respondError(w, http.StatusBadRequest, "invalid key")
		return
	}
	s.logger.Debug("reset checkpoint request", zap.String("key", key))
	had, err := s.service.Reset(r.Context(), key)
	if err != nil {
		s.logger.Error("reset failed", zap.String("key", key), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"key": key, "cleared": had})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":             "ok",
		"checkpoint_backend": s.config.Checkpoint.Backend,
		"recognizer_backend": s.config.Recognizer.Backend,
	}
	cp := s.config.Checkpoint
	if bytes, err := checkpoint.DiskUsageBytes(cp.Path, cp.Dir, cp.SQLitePath); err == nil {
		resp["checkpoint_disk_bytes"] = bytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, anonymizer.ErrEmptyInput) {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Error(op+" failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
