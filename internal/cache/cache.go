// Package cache provides a best-effort Redis read cache for hot catalog
// reads. Every method degrades to a miss or a no-op on Redis errors, so a
// missing or failing Redis never affects correctness.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pystore/catalog/internal/domain"
)

const (
	productKeyPrefix  = "catalog:product:"
	categoryCountsKey = "catalog:categories"
)

// Cache wraps a Redis client with catalog-specific keys. A nil *Cache is
// valid and behaves as an always-miss cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a catalog cache on top of the given Redis client.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetProduct returns a cached product, or false on a miss.
func (c *Cache) GetProduct(ctx context.Context, id string) (*domain.Product, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, productKeyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.DebugContext(ctx, "cache read failed",
				slog.String("key", productKeyPrefix+id),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.DebugContext(ctx, "cache entry corrupt, dropping",
			slog.String("key", productKeyPrefix+id),
			slog.String("error", err.Error()),
		)
		c.client.Del(ctx, productKeyPrefix+id)
		return nil, false
	}

	return &p, true
}

// SetProduct stores a product under its ID.
func (c *Cache) SetProduct(ctx context.Context, p *domain.Product) {
	if c == nil {
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKeyPrefix+p.ID, data, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache write failed",
			slog.String("key", productKeyPrefix+p.ID),
			slog.String("error", err.Error()),
		)
	}
}

// InvalidateProduct drops the cached entry for a product.
func (c *Cache) InvalidateProduct(ctx context.Context, id string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, productKeyPrefix+id).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache invalidation failed",
			slog.String("key", productKeyPrefix+id),
			slog.String("error", err.Error()),
		)
	}
}

// GetCategoryCounts returns the cached category aggregation, or false on a miss.
func (c *Cache) GetCategoryCounts(ctx context.Context) ([]domain.CategoryCount, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, categoryCountsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.DebugContext(ctx, "cache read failed",
				slog.String("key", categoryCountsKey),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var counts []domain.CategoryCount
	if err := json.Unmarshal(data, &counts); err != nil {
		c.client.Del(ctx, categoryCountsKey)
		return nil, false
	}

	return counts, true
}

// SetCategoryCounts stores the category aggregation.
func (c *Cache) SetCategoryCounts(ctx context.Context, counts []domain.CategoryCount) {
	if c == nil {
		return
	}

	data, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, categoryCountsKey, data, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache write failed",
			slog.String("key", categoryCountsKey),
			slog.String("error", err.Error()),
		)
	}
}

// InvalidateCategoryCounts drops the cached category aggregation. Called on
// every write since any mutation can shift the buckets.
func (c *Cache) InvalidateCategoryCounts(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, categoryCountsKey).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache invalidation failed",
			slog.String("key", categoryCountsKey),
			slog.String("error", err.Error()),
		)
	}
}
