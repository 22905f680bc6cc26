package checkpoint

import (
	"context"
	"sync"

	"github.com/hyperjump/kakusu/internal/models"
)

// Memory keeps progress in process memory. Saves are deep copies.
type Memory struct {
	mu    sync.Mutex
	saved *models.Progress
	saves int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns a copy of the last saved progress, or zero progress.
func (m *Memory) Load(_ context.Context) (*models.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return models.NewProgress(), nil
	}
	return m.saved.Clone(), nil
}

// Save stores a copy of p.
func (m *Memory) Save(_ context.Context, p *models.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = p.Clone()
	m.saves++
	return nil
}

// Clear forgets saved progress.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	return nil
}

// Saves returns how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
