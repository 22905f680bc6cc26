// Package checkpoint persists extraction progress so interrupted runs can resume.
package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/docid"
	"github.com/hyperjump/kakusu/internal/models"
)

// Store loads, saves and clears the progress of one document.
// Load on a store with nothing saved returns zero progress, not an error.
type Store interface {
	Load(ctx context.Context) (*models.Progress, error)
	Save(ctx context.Context, p *models.Progress) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the store configured in cfg for the document identified by key.
func Open(cfg *config.CheckpointConfig, key string) (Store, error) {
	if !docid.Valid(key) {
		return nil, fmt.Errorf("invalid checkpoint key %q", key)
	}
	switch cfg.Backend {
	case config.BackendFile, "":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(cfg.Dir, key+".json")
		}
		return NewFile(path), nil
	case config.BackendSQLite:
		return NewSQLite(cfg.SQLitePath, key)
	case config.BackendRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPrefix+key, cfg.TTL), nil
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// HasProgress reports whether s holds any processed chunks or entities.
func HasProgress(ctx context.Context, s Store) (bool, error) {
	p, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return p.ProcessedChunks > 0 || p.Entities.Total() > 0, nil
}
