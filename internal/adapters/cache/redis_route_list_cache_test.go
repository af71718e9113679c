package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiflow-service/internal/adapters/repositories"
	"logiflow-service/internal/domain"
)

type countingRepo struct {
	*repositories.MemoryStore
	loads   int
	failErr error
}

func (r *countingRepo) Load(ctx context.Context, key string) ([]domain.DeliveryRecord, bool, error) {
	r.loads++
	return r.MemoryStore.Load(ctx, key)
}

func (r *countingRepo) Save(ctx context.Context, key string, list []domain.DeliveryRecord) error {
	if r.failErr != nil {
		return r.failErr
	}
	return r.MemoryStore.Save(ctx, key, list)
}

func newCache(t *testing.T) (*RedisRouteListCache, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingRepo{MemoryStore: repositories.NewMemoryStore()}
	return NewRedisRouteListCache(client, inner), inner, mr
}

func records() []domain.DeliveryRecord {
	done := int64(99)
	return []domain.DeliveryRecord{
		{ID: "LF-1", Name: "Ana", Address: "Rua A", Status: domain.StatusDelivered, CreatedAt: 1, CompletedAt: &done},
		{ID: "LF-2", Name: "Bia", Status: domain.StatusPending, CreatedAt: 2},
	}
}

func TestRedisCacheReadThrough(t *testing.T) {
	c, inner, mr := newCache(t)
	ctx := context.Background()
	key := domain.RouteKeyFor("ana@x.com")

	require.NoError(t, inner.MemoryStore.Save(ctx, key, records()))

	first, ok, err := c.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("routes:"+key))

	second, ok, err := c.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1, inner.loads)
	assert.Equal(t, records(), first)
	assert.Equal(t, first, second)
}

func TestRedisCacheAbsentListIsNotCached(t *testing.T) {
	c, inner, mr := newCache(t)

	_, ok, err := c.Load(context.Background(), "logiflow_list_none")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("routes:logiflow_list_none"))
	assert.Equal(t, 1, inner.loads)
}

func TestRedisCacheSaveRefreshesSnapshot(t *testing.T) {
	c, inner, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "k", records()))
	require.NoError(t, c.Save(ctx, "k", records()[1:]))

	got, ok, err := c.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, records()[1:], got)
	assert.Equal(t, 0, inner.loads)
}

func TestRedisCacheSaveFailureDropsSnapshot(t *testing.T) {
	c, inner, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "k", records()))
	inner.failErr = errors.New("disk full")

	err := c.Save(ctx, "k", nil)
	require.Error(t, err)
	assert.False(t, mr.Exists("routes:k"))
}

func TestRedisCacheFallsBackWhenRedisDown(t *testing.T) {
	c, inner, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, inner.MemoryStore.Save(ctx, "k", records()))

	mr.Close()

	got, ok, err := c.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, records(), got)
}

func TestRedisCacheDropsCorruptSnapshot(t *testing.T) {
	c, inner, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, inner.MemoryStore.Save(ctx, "k", records()))
	require.NoError(t, mr.Set("routes:k", "not msgpack"))

	got, ok, err := c.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, records(), got)
	assert.Equal(t, 1, inner.loads)
}
