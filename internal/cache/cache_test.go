package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pystore/catalog/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, ttl, logger), mr
}

func sampleProduct() *domain.Product {
	return &domain.Product{
		ID:          "550e8400-e29b-41d4-a716-446655440000",
		Name:        "Tênis de Corrida",
		Description: "Tênis esportivo com amortecimento",
		Category:    "calcados",
		Tags:        []string{"esporte"},
		Active:      true,
	}
}

// A nil cache must behave as an always-miss cache so disabling Redis needs no
// branching at the call sites.
func TestNilCache_AlwaysMisses(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	p, ok := c.GetProduct(ctx, "prod-1")
	assert.Nil(t, p)
	assert.False(t, ok)

	counts, ok := c.GetCategoryCounts(ctx)
	assert.Nil(t, counts)
	assert.False(t, ok)

	// Writes and invalidations are no-ops.
	c.SetProduct(ctx, &domain.Product{ID: "prod-1"})
	c.SetCategoryCounts(ctx, []domain.CategoryCount{{Category: "casa", Count: 1}})
	c.InvalidateProduct(ctx, "prod-1")
	c.InvalidateCategoryCounts(ctx)
}

func TestGetProduct_Hit(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	p := sampleProduct()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, mr.Set("catalog:product:"+p.ID, string(data)))

	got, ok := c.GetProduct(ctx, p.ID)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Tags, got.Tags)
}

func TestGetProduct_Miss(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	got, ok := c.GetProduct(context.Background(), "missing-id")
	assert.Nil(t, got)
	assert.False(t, ok)
}

func TestGetProduct_CorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	key := "catalog:product:broken-id"
	require.NoError(t, mr.Set(key, "{not json"))

	got, ok := c.GetProduct(ctx, "broken-id")
	assert.Nil(t, got)
	assert.False(t, ok)

	// The corrupt entry must be deleted so the next read repopulates it.
	assert.False(t, mr.Exists(key))
}

func TestSetProduct_WritesWithTTL(t *testing.T) {
	c, mr := newTestCache(t, 90*time.Second)
	ctx := context.Background()

	p := sampleProduct()
	c.SetProduct(ctx, p)

	key := "catalog:product:" + p.ID
	require.True(t, mr.Exists(key))
	assert.Equal(t, 90*time.Second, mr.TTL(key))

	got, ok := c.GetProduct(ctx, p.ID)
	require.True(t, ok)
	assert.Equal(t, p.Name, got.Name)
}

func TestSetProduct_ExpiresAfterTTL(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	p := sampleProduct()
	c.SetProduct(ctx, p)

	mr.FastForward(2 * time.Second)

	got, ok := c.GetProduct(ctx, p.ID)
	assert.Nil(t, got)
	assert.False(t, ok)
}

func TestInvalidateProduct(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	p := sampleProduct()
	c.SetProduct(ctx, p)
	require.True(t, mr.Exists("catalog:product:"+p.ID))

	c.InvalidateProduct(ctx, p.ID)

	assert.False(t, mr.Exists("catalog:product:"+p.ID))
	_, ok := c.GetProduct(ctx, p.ID)
	assert.False(t, ok)
}

func TestCategoryCounts_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	counts := []domain.CategoryCount{
		{Category: "calcados", Count: 12},
		{Category: "casa", Count: 7},
	}
	c.SetCategoryCounts(ctx, counts)
	require.True(t, mr.Exists("catalog:categories"))

	got, ok := c.GetCategoryCounts(ctx)
	require.True(t, ok)
	assert.Equal(t, counts, got)
}

func TestCategoryCounts_CorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("catalog:categories", "not-an-array"))

	got, ok := c.GetCategoryCounts(ctx)
	assert.Nil(t, got)
	assert.False(t, ok)
	assert.False(t, mr.Exists("catalog:categories"))
}

func TestInvalidateCategoryCounts(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.SetCategoryCounts(ctx, []domain.CategoryCount{{Category: "casa", Count: 3}})
	require.True(t, mr.Exists("catalog:categories"))

	c.InvalidateCategoryCounts(ctx)

	assert.False(t, mr.Exists("catalog:categories"))
}

func TestGetProduct_ServerGone_DegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	p := sampleProduct()
	c.SetProduct(ctx, p)
	mr.Close()

	got, ok := c.GetProduct(ctx, p.ID)
	assert.Nil(t, got)
	assert.False(t, ok)
}
