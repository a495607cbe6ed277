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
	quoteKey = "updown:quote"
	quoteTTL = 1 * time.Minute
)

// QuoteCache mirrors the latest market quote to Redis.
type QuoteCache struct {
	client *Client
}

// NewQuoteCache creates a QuoteCache on the given client.
func NewQuoteCache(client *Client) *QuoteCache {
	return &QuoteCache{client: client}
}

// SetQuote stores the quote with a short TTL.
func (c *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote: %w", err)
	}
	if err := c.client.rdb.Set(ctx, quoteKey, data, quoteTTL).Err(); err != nil {
		return fmt.Errorf("redis: set quote: %w", err)
	}
	return nil
}

// GetQuote reads the latest quote, mapping a missing or expired key to
// domain.ErrStaleSnapshot.
func (c *QuoteCache) GetQuote(ctx context.Context) (domain.Quote, error) {
	data, err := c.client.rdb.Get(ctx, quoteKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrStaleSnapshot
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote: %w", err)
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: decode quote: %w", err)
	}
	return q, nil
}
