package recognizer

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hyperjump/kakusu/internal/models"
)

// Cached memoizes another recognizer's spans by text in an LRU cache. Errors are not cached.
type Cached struct {
	next  Recognizer
	cache *lru.Cache[string, []models.Span]
}

// NewCached wraps next with a cache of the given capacity.
func NewCached(next Recognizer, capacity int) (*Cached, error) {
	c, err := lru.New[string, []models.Span](capacity)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c}, nil
}

// Recognize returns the cached spans for text or asks the wrapped recognizer.
func (c *Cached) Recognize(ctx context.Context, text string) ([]models.Span, error) {
	if spans, ok := c.cache.Get(text); ok {
		return append([]models.Span(nil), spans...), nil
	}
	spans, err := c.next.Recognize(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, append([]models.Span(nil), spans...))
	return spans, nil
}

// Len returns the number of cached texts.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Close closes the wrapped recognizer.
func (c *Cached) Close() error {
	return c.next.Close()
}
