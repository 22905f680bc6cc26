package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kakusu/internal/anonymizer"
	"github.com/hyperjump/kakusu/internal/docid"
	"go.uber.org/zap"
)

// processedDir holds inbox files that have been turned into artifacts.
const processedDir = "processed"

// Inbox turns inbox files into artifacts in the outbox.
type Inbox struct {
	service *anonymizer.Service
	outbox  string
	logger  *zap.Logger
}

// NewInbox returns an inbox processor writing to outbox.
func NewInbox(svc *anonymizer.Service, outbox string, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{service: svc, outbox: outbox, logger: logger}
}

// ArtifactPath returns where the artifact for the inbox file at path is written.
func (in *Inbox) ArtifactPath(path string) string {
	base := filepath.Base(path)
	return filepath.Join(in.outbox, strings.TrimSuffix(base, filepath.Ext(base))+".zip")
}

// Process extracts and anonymizes the file at path, writes its artifact to the outbox and moves
// the source under outbox/processed. The checkpoint is keyed by path, so an interrupted file
// resumes where it stopped. While extraction is still partial (coverage below 100) the source
// and its checkpoint stay in place and no artifact is written; the next trigger continues it.
func (in *Inbox) Process(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	log := in.logger.With(zap.String("path", abs))
	text, err := in.service.ReadDocument(abs)
	if err != nil {
		return err
	}
	key := docid.FromPath(abs)
	res, err := in.service.Run(ctx, anonymizer.RunRequest{Text: text, Key: key})
	if err != nil {
		return fmt.Errorf("failed to anonymize %s: %w", filepath.Base(abs), err)
	}
	if !res.Extract.Complete() {
		state := res.Extract.Result.State
		log.Info("inbox file partially extracted, waiting for the next run",
			zap.Int("processed", state.ProcessedChunks),
			zap.Int("total", res.Extract.Result.Total))
		return nil
	}
	out := in.ArtifactPath(abs)
	if err := os.MkdirAll(in.outbox, 0755); err != nil {
		return err
	}
	if err := in.service.WriteArtifact(out, res.Anonymized); err != nil {
		return err
	}
	if _, err := in.service.Reset(ctx, key); err != nil {
		log.Warn("checkpoint not cleared", zap.Error(err))
	}

	done := filepath.Join(in.outbox, processedDir)
	if err := os.MkdirAll(done, 0755); err != nil {
		return err
	}
	if err := os.Rename(abs, filepath.Join(done, filepath.Base(abs))); err != nil {
		return fmt.Errorf("failed to move processed file: %w", err)
	}
	log.Info("inbox file anonymized",
		zap.String("artifact", out),
		zap.Int("entries", res.Anonymized.Mapping.Len()),
		zap.Int("failed_chunks", res.Extract.Result.Failed))
	return nil
}
