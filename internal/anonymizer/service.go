// Package anonymizer ties extraction, replacement, packaging and reversal into the operations the
// CLI, HTTP API and watcher expose.
package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kakusu/internal/artifact"
	"github.com/hyperjump/kakusu/internal/checkpoint"
	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/docid"
	"github.com/hyperjump/kakusu/internal/extract"
	"github.com/hyperjump/kakusu/internal/extraction"
	"github.com/hyperjump/kakusu/internal/metrics"
	"github.com/hyperjump/kakusu/internal/models"
	"github.com/hyperjump/kakusu/internal/recognizer"
	"github.com/hyperjump/kakusu/internal/redact"
)

// ErrEmptyInput is returned when a document is missing, unreadable or blank.
var ErrEmptyInput = errors.New("empty input")

// Service runs the anonymization pipeline.
type Service struct {
	cfg        *config.Config
	recognizer recognizer.Recognizer
	openStore  func(key string) (checkpoint.Store, error)
	documents  *extract.Extractor
	packager   *artifact.Packager
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records pipeline counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStoreOpener overrides how checkpoint stores are opened for a document key.
func WithStoreOpener(fn func(key string) (checkpoint.Store, error)) Option {
	return func(s *Service) { s.openStore = fn }
}

// New returns a service using cfg and r.
func New(cfg *config.Config, r recognizer.Recognizer, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		recognizer: r,
		documents:  extract.NewExtractor(),
		packager:   &artifact.Packager{},
		logger:     zap.NewNop(),
	}
	s.openStore = func(key string) (checkpoint.Store, error) {
		return checkpoint.Open(&s.cfg.Checkpoint, key)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadDocument returns the text of the document at path. Unreadable or blank documents are logged
// and reported as ErrEmptyInput wrapping the cause.
func (s *Service) ReadDocument(path string) (string, error) {
	text, err := s.documents.Extract(path)
	if err != nil {
		s.logger.Warn("cannot read document", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrEmptyInput, err)
	}
	return text, nil
}

// ExtractRequest asks for entities in Text.
type ExtractRequest struct {
	Text string
	// Key identifies the checkpoint; derived from Text when empty.
	Key string
	// Reset clears the checkpoint before running.
	Reset bool
	// CoveragePercent overrides extraction.coverage_percent when > 0.
	CoveragePercent float64
	Progress        extraction.ProgressFunc
}

// ExtractResponse holds the entities found so far and the run summary.
type ExtractResponse struct {
	Key      string
	Entities *models.EntitySet
	Result   extraction.Result
}

// Complete reports whether every chunk has been scanned.
func (r *ExtractResponse) Complete() bool {
	return r.Result.Done()
}

// Extract chunks the text and runs a resumable extraction over it.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		s.logger.Warn("extract called with empty text")
		return nil, ErrEmptyInput
	}
	chunker, err := extraction.NewChunker(s.cfg.Chunking.Size, s.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.Chunk(req.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmptyInput, err)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	key := req.Key
	if key == "" {
		key = docid.FromText(req.Text)
	}
	store := s.store(key)
	defer store.Close()

	if req.Reset {
		if err := store.Clear(ctx); err != nil {
			s.logger.Warn("checkpoint reset failed", zap.String("key", key), zap.Error(err))
		}
	}

	percent := req.CoveragePercent
	if percent <= 0 {
		percent = s.cfg.Extraction.CoveragePercent
	}
	x := extraction.NewExtractor(s.recognizer, store,
		extraction.WithLogger(s.logger.With(zap.String("key", key))),
		extraction.WithMetrics(s.metrics),
		extraction.WithProgress(req.Progress),
		extraction.WithCheckpointEvery(s.cfg.Extraction.CheckpointEvery),
		extraction.WithWorkers(s.cfg.Extraction.Workers),
	)
	res, err := x.Resume(ctx, chunks, percent)
	out := &ExtractResponse{Key: key, Entities: res.State.Entities, Result: res}
	if err != nil {
		return out, err
	}
	return out, nil
}

// store opens the checkpoint for key, falling back to memory when it cannot be opened.
func (s *Service) store(key string) checkpoint.Store {
	st, err := s.openStore(key)
	if err != nil {
		s.logger.Warn("checkpoint store unavailable, progress will not be saved", zap.String("key", key), zap.Error(err))
		return checkpoint.NewMemory()
	}
	return st
}

// Categories returns the configured entity-type filter. Unknown names are logged and skipped;
// an empty filter selects every category.
func (s *Service) Categories() []models.Category {
	var cats []models.Category
	for _, name := range s.cfg.Extraction.EntityTypes {
		c, err := models.ParseCategory(name)
		if err != nil {
			s.logger.Warn("ignoring entity type", zap.Error(err))
			continue
		}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		return models.Categories()
	}
	return cats
}

// Edits builds the editable mapping: the selected categories' entities in sorted order, then the
// keywords, all with empty replacements.
func Edits(entities *models.EntitySet, categories []models.Category, keywords []string) *models.Mapping {
	m := models.NewMapping()
	for _, c := range categories {
		for _, text := range entities.Sorted(c) {
			m.Add(text)
		}
	}
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			m.Add(kw)
		}
	}
	return m
}

// WriteTemplate writes edits as an "Original,Replacement" CSV the user can fill in.
func (s *Service) WriteTemplate(w io.Writer, edits *models.Mapping) error {
	return artifact.WriteTemplate(w, edits)
}

// Anonymized is redacted text with the mapping that produced it.
type Anonymized struct {
	Text string
	// Mapping is original -> replacement, every replacement non-empty.
	Mapping *models.Mapping
}

// Anonymize assigns placeholders to blank replacements starting at seed and substitutes every
// mapping key in text on whole words. A seed below 1 uses anonymize.seed.
func (s *Service) Anonymize(text string, edits *models.Mapping, seed int) (*Anonymized, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if seed < 1 {
		seed = s.cfg.Anonymize.Seed
	}
	m := redact.Assign(edits, seed)
	out := redact.Replace(text, m)
	s.logger.Debug("text anonymized", zap.Int("entries", m.Len()))
	return &Anonymized{Text: out, Mapping: m}, nil
}

// Package writes a as a ZIP artifact to w. Nothing is written on failure.
func (s *Service) Package(w io.Writer, a *Anonymized) error {
	if err := s.packager.Encode(w, a.Text, a.Mapping); err != nil {
		return err
	}
	s.metrics.ArtifactWritten()
	return nil
}

// WriteArtifact writes a as a ZIP artifact at path, atomically.
func (s *Service) WriteArtifact(path string, a *Anonymized) error {
	if err := s.packager.WriteFile(path, a.Text, a.Mapping); err != nil {
		return err
	}
	s.metrics.ArtifactWritten()
	s.logger.Info("artifact written", zap.String("path", path), zap.Int("entries", a.Mapping.Len()))
	return nil
}

// Preview tags would-be replacements in the leading percent of text without changing it.
// percent <= 0 uses anonymize.preview_percent.
func (s *Service) Preview(text string, edits *models.Mapping, seed int, percent float64) []redact.Segment {
	if percent <= 0 {
		percent = s.cfg.Anonymize.PreviewPercent
	}
	if seed < 1 {
		seed = s.cfg.Anonymize.Seed
	}
	return redact.Preview(redact.Head(text, percent), redact.Assign(edits, seed))
}

// Reverse restores originals in text. mapping is original -> replacement as read from an artifact
// or a mapping CSV of either column order.
func (s *Service) Reverse(text string, mapping *models.Mapping) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	out := redact.Reverse(text, mapping.Invert())
	s.metrics.Reversed()
	return out, nil
}

// ReverseArtifact restores the original text held in the artifact at path.
func (s *Service) ReverseArtifact(path string) (string, error) {
	c, err := artifact.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmptyInput, err)
	}
	return s.Reverse(c.Text, c.Mapping)
}

// Reset clears the checkpoint for key. It reports whether there was progress to clear.
func (s *Service) Reset(ctx context.Context, key string) (bool, error) {
	st, err := s.openStore(key)
	if err != nil {
		return false, err
	}
	defer st.Close()
	had, err := checkpoint.HasProgress(ctx, st)
	if err != nil {
		s.logger.Warn("checkpoint unreadable before reset", zap.String("key", key), zap.Error(err))
	}
	if err := st.Clear(ctx); err != nil {
		return false, fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return had, nil
}

// RunRequest extracts and anonymizes in one step.
type RunRequest struct {
	Text     string
	Key      string
	Reset    bool
	Keywords []string
	// Overrides supplies explicit replacements; missing or blank entries get placeholders.
	Overrides *models.Mapping
	Seed      int
	Progress  extraction.ProgressFunc
}

// RunResult is the outcome of Run.
type RunResult struct {
	Extract    *ExtractResponse
	Anonymized *Anonymized
}

// Run extracts entities, builds edits from the configured categories plus keywords, applies
// overrides and anonymizes the text.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ext, err := s.Extract(ctx, ExtractRequest{Text: req.Text, Key: req.Key, Reset: req.Reset, Progress: req.Progress})
	if err != nil {
		return nil, err
	}
	keywords := append(append([]string(nil), s.cfg.Anonymize.Keywords...), req.Keywords...)
	edits := Edits(ext.Entities, s.Categories(), keywords)
	for _, e := range req.Overrides.Entries() {
		edits.Set(e.Original, e.Replacement)
	}
	a, err := s.Anonymize(req.Text, edits, req.Seed)
	if err != nil {
		return nil, err
	}
	return &RunResult{Extract: ext, Anonymized: a}, nil
}
