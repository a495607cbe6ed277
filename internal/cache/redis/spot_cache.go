package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

const (
	spotKey = "updown:spot"

	// spotTTL expires stale snapshots so a dead feed reads as missing
	// instead of frozen.
	spotTTL = 30 * time.Second
)

// SpotCache publishes the latest underlying price snapshot to Redis.
type SpotCache struct {
	client *Client
}

// NewSpotCache creates a SpotCache on the given client.
func NewSpotCache(client *Client) *SpotCache {
	return &SpotCache{client: client}
}

// SetSpot stores the snapshot with a short TTL.
func (c *SpotCache) SetSpot(ctx context.Context, snap domain.SpotSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal spot: %w", err)
	}
	if err := c.client.rdb.Set(ctx, spotKey, data, spotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set spot: %w", err)
	}
	return nil
}

// GetSpot reads the latest snapshot, mapping a missing or expired key to
// domain.ErrStaleSnapshot.
func (c *SpotCache) GetSpot(ctx context.Context) (domain.SpotSnapshot, error) {
	data, err := c.client.rdb.Get(ctx, spotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SpotSnapshot{}, domain.ErrStaleSnapshot
		}
		return domain.SpotSnapshot{}, fmt.Errorf("redis: get spot: %w", err)
	}

	var snap domain.SpotSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.SpotSnapshot{}, fmt.Errorf("redis: decode spot: %w", err)
	}
	return snap, nil
}
