package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/hyperjump/kakusu/internal/models"
)

const lockRetry = 50 * time.Millisecond

// File stores progress as a JSON document at a path. Writes go to a temp file in the same directory
// and are renamed into place, so readers see either the old or the new checkpoint. A sibling
// ".lock" file serializes writers across processes.
type File struct {
	path string
	lock *flock.Flock
}

// NewFile returns a store backed by the JSON file at path.
func NewFile(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the checkpoint file path.
func (f *File) Path() string { return f.path }

// Load reads the checkpoint. A missing file is zero progress.
func (f *File) Load(_ context.Context) (*models.Progress, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewProgress(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	p := models.NewProgress()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", f.path, err)
	}
	return p, nil
}

// Save replaces the checkpoint with p.
func (f *File) Save(ctx context.Context, p *models.Progress) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if err := f.withLock(ctx, func() error {
		tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return err
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpName)
			return err
		}
		if err := os.Rename(tmpName, f.path); err != nil {
			_ = os.Remove(tmpName)
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file. Clearing a missing checkpoint is not an error.
func (f *File) Clear(ctx context.Context) error {
	err := f.withLock(ctx, func() error {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	_ = os.Remove(f.lock.Path())
	return nil
}

func (f *File) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	locked, err := f.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return err
	}
	if !locked {
		return errors.New("checkpoint is locked")
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

func (f *File) Close() error {
	return f.lock.Close()
}
