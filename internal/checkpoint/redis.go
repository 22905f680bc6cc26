package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/kakusu/internal/models"
)

// Redis stores progress as a JSON value under one key, refreshed with a TTL on every save.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owned  bool
}

// NewRedis connects to addr and stores progress under key. A zero ttl means no expiry.
func NewRedis(addr, key string, ttl time.Duration) *Redis {
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr}), key, ttl)
	r.owned = true
	return r
}

// NewRedisWithClient uses an existing client. Close does not close a client it did not create.
func NewRedisWithClient(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// Load reads the JSON value. A missing key is zero progress.
func (r *Redis) Load(ctx context.Context) (*models.Progress, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewProgress(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	p := models.NewProgress()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return p, nil
}

// Save writes the JSON value.
func (r *Redis) Save(ctx context.Context, p *models.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Clear deletes the key.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
