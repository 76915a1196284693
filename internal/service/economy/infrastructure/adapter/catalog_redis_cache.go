package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"vault/internal/service/economy/domain"
)

const activeCatalogKey = "economy:catalog:active"

// RedisClient 是缓存用到的最小 redis 命令集合。
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CatalogRedisCache 实现了 port.CatalogCache 接口，以 JSON 存储在售礼物列表。
type CatalogRedisCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewCatalogRedisCache(client RedisClient, ttl time.Duration) *CatalogRedisCache {
	return &CatalogRedisCache{client: client, ttl: ttl}
}

type cachedGift struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	ImageRef    string    `json:"image_url"`
	Rare        bool      `json:"is_rare"`
	CreatedBy   string    `json:"created_by"`
	Stock       int64     `json:"quantity"`
	Upgradeable bool      `json:"upgradeable"`
	MintedCount int64     `json:"minted_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *CatalogRedisCache) GetActive(ctx context.Context) ([]*domain.Gift, bool, error) {
	raw, err := c.client.Get(ctx, activeCatalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get catalog")
	}
	var cached []cachedGift
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, errors.Wrap(err, "decode cached catalog")
	}
	gifts := make([]*domain.Gift, len(cached))
	for i, g := range cached {
		gifts[i] = &domain.Gift{
			ID:          g.ID,
			Name:        g.Name,
			Price:       g.Price,
			ImageRef:    g.ImageRef,
			Rare:        g.Rare,
			CreatedBy:   g.CreatedBy,
			Stock:       g.Stock,
			Active:      true,
			Upgradeable: g.Upgradeable,
			MintedCount: g.MintedCount,
			CreatedAt:   g.CreatedAt,
		}
	}
	return gifts, true, nil
}

func (c *CatalogRedisCache) SetActive(ctx context.Context, gifts []*domain.Gift) error {
	cached := make([]cachedGift, len(gifts))
	for i, g := range gifts {
		cached[i] = cachedGift{
			ID:          g.ID,
			Name:        g.Name,
			Price:       g.Price,
			ImageRef:    g.ImageRef,
			Rare:        g.Rare,
			CreatedBy:   g.CreatedBy,
			Stock:       g.Stock,
			Upgradeable: g.Upgradeable,
			MintedCount: g.MintedCount,
			CreatedAt:   g.CreatedAt,
		}
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}
	return errors.Wrap(c.client.Set(ctx, activeCatalogKey, payload, c.ttl).Err(), "redis set catalog")
}

func (c *CatalogRedisCache) Invalidate(ctx context.Context) error {
	return errors.Wrap(c.client.Del(ctx, activeCatalogKey).Err(), "redis del catalog")
}
