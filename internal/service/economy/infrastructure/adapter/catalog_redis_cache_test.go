package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault/internal/service/economy/domain"
)

// mapRedis 用 go-redis 的结果构造函数模拟一个单机 redis。
type mapRedis struct {
	data map[string][]byte
	ttl  map[string]time.Duration
	err  error
}

func newMapRedis() *mapRedis {
	return &mapRedis{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *mapRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *mapRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	m.data[key] = value.([]byte)
	m.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (m *mapRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestCatalogRedisCacheRoundTrip(t *testing.T) {
	client := newMapRedis()
	cache := NewCatalogRedisCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.GetActive(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache is a miss")

	gifts := []*domain.Gift{
		{ID: "gift1", Name: "Сердце", Price: 5, ImageRef: "❤️", Stock: domain.UnlimitedStock, Active: true},
		{ID: "gift4", Name: "Кубок", Price: 20, ImageRef: "🏆", Rare: true, Stock: 3, Active: true, Upgradeable: true, MintedCount: 2},
	}
	require.NoError(t, cache.SetActive(ctx, gifts))
	assert.Equal(t, time.Minute, client.ttl[activeCatalogKey])

	got, ok, err := cache.GetActive(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, gifts, got)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.GetActive(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogRedisCacheEmptyListIsAHit(t *testing.T) {
	cache := NewCatalogRedisCache(newMapRedis(), time.Minute)
	require.NoError(t, cache.SetActive(context.Background(), nil))

	got, ok, err := cache.GetActive(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCatalogRedisCacheErrors(t *testing.T) {
	client := newMapRedis()
	client.err = errors.New("connection refused")
	_, ok, err := NewCatalogRedisCache(client, time.Minute).GetActive(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)

	client = newMapRedis()
	client.data[activeCatalogKey] = []byte("not json")
	_, _, err = NewCatalogRedisCache(client, time.Minute).GetActive(context.Background())
	assert.Error(t, err)
}
