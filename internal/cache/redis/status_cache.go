package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

const statusKey = "sandwich:status"

// StatusCache holds the latest coordinator status snapshot published by the
// dispatching process, so an api-mode process can serve it.
type StatusCache struct {
	rdb *redis.Client
}

// NewStatusCache creates a StatusCache backed by the given Client.
func NewStatusCache(c *Client) *StatusCache {
	return &StatusCache{rdb: c.Underlying()}
}

// Put stores payload for ttl. A publisher that stops refreshing lets the
// snapshot expire instead of serving a stale one forever.
func (sc *StatusCache) Put(ctx context.Context, payload []byte, ttl time.Duration) error {
	if err := sc.rdb.Set(ctx, statusKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put status: %w", err)
	}
	return nil
}

// Get returns the stored snapshot or domain.ErrNotFound.
func (sc *StatusCache) Get(ctx context.Context) ([]byte, error) {
	b, err := sc.rdb.Get(ctx, statusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get status: %w", err)
	}
	return b, nil
}
