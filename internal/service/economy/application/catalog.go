package application

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"vault/internal/pkg/logger"
	"vault/internal/service/economy/domain"
	"vault/internal/service/economy/domain/port"
)

const activeCatalogKey = "catalog:active"

// GiftCatalog 管理礼物定义、库存和上下架状态。
type GiftCatalog struct {
	cache port.CatalogCache // 可选
	group singleflight.Group

	// generation 在每次失效时递增，读事务提交时据此丢弃过期的回填
	mu         sync.Mutex
	generation uint64

	newID func() string
	now   func() time.Time
}

func NewGiftCatalog(cache port.CatalogCache) *GiftCatalog {
	return &GiftCatalog{cache: cache, newID: newGiftID, now: time.Now}
}

// ListActive 返回在售礼物，按价格升序。缓存失败只降级，不影响结果。
func (c *GiftCatalog) ListActive(ctx context.Context, tx domain.Tx) ([]*domain.Gift, error) {
	if c.cache != nil {
		gifts, ok, err := c.cache.GetActive(ctx)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("catalog cache read failed")
		} else if ok {
			return gifts, nil
		}
	}

	v, err, _ := c.group.Do(activeCatalogKey, func() (interface{}, error) {
		gen := c.currentGeneration()
		gifts, err := tx.Gifts().ListActive(ctx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			tx.OnCommit(func(ctx context.Context) { c.fill(ctx, gen, gifts) })
		}
		return gifts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Gift), nil
}

func (c *GiftCatalog) Get(ctx context.Context, tx domain.Tx, giftID string) (*domain.Gift, error) {
	return tx.Gifts().Get(ctx, giftID)
}

// Create 新建礼物。默认不限量、不可升级。
func (c *GiftCatalog) Create(ctx context.Context, tx domain.Tx, creatorID string, spec domain.GiftSpec) (*domain.Gift, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	id := spec.ID
	if id == "" {
		id = c.newID()
	}
	gift := domain.NewGift(id, creatorID, spec, c.now())
	if err := tx.Gifts().Create(ctx, gift); err != nil {
		return nil, err
	}
	c.invalidateOnCommit(tx)
	return gift, nil
}

// Deactivate 下架礼物，已持有的库存和藏品不受影响。
func (c *GiftCatalog) Deactivate(ctx context.Context, tx domain.Tx, giftID string) (*domain.Gift, error) {
	return c.update(ctx, tx, giftID, func(g *domain.Gift) { g.Active = false })
}

func (c *GiftCatalog) SetUpgradeable(ctx context.Context, tx domain.Tx, giftID string, upgradeable bool) (*domain.Gift, error) {
	return c.update(ctx, tx, giftID, func(g *domain.Gift) { g.Upgradeable = upgradeable })
}

// DecrementStock 在购买事务内锁定礼物并扣减库存。
// 加锁后重新校验上架状态，与并发的下架操作保持一致。
func (c *GiftCatalog) DecrementStock(ctx context.Context, tx domain.Tx, giftID string) (*domain.Gift, error) {
	gift, err := tx.Gifts().GetForUpdate(ctx, giftID)
	if err != nil {
		return nil, err
	}
	if !gift.Active {
		return nil, errors.Wrapf(domain.ErrNotFound, "gift %s is not available", giftID)
	}
	if !gift.Limited() {
		return gift, nil
	}
	if err := gift.DecrementStock(); err != nil {
		return nil, err
	}
	if err := tx.Gifts().Save(ctx, gift); err != nil {
		return nil, err
	}
	c.invalidateOnCommit(tx)
	return gift, nil
}

func (c *GiftCatalog) ListByCreator(ctx context.Context, tx domain.Tx, creatorID string) ([]*domain.Gift, error) {
	return tx.Gifts().ListByCreator(ctx, creatorID)
}

// Seed 在目录为空时写入默认礼物，返回写入数量。
func (c *GiftCatalog) Seed(ctx context.Context, tx domain.Tx, specs []domain.GiftSpec) (int, error) {
	n, err := tx.Gifts().Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, spec := range specs {
		if _, err := c.Create(ctx, tx, domain.SystemCreator, spec); err != nil {
			return 0, errors.Wrapf(err, "seed gift %q", spec.Name)
		}
	}
	return len(specs), nil
}

func (c *GiftCatalog) update(ctx context.Context, tx domain.Tx, giftID string, mutate func(*domain.Gift)) (*domain.Gift, error) {
	gift, err := tx.Gifts().GetForUpdate(ctx, giftID)
	if err != nil {
		return nil, err
	}
	mutate(gift)
	if err := tx.Gifts().Save(ctx, gift); err != nil {
		return nil, err
	}
	c.invalidateOnCommit(tx)
	return gift, nil
}

func (c *GiftCatalog) invalidateOnCommit(tx domain.Tx) {
	if c.cache == nil {
		return
	}
	tx.OnCommit(func(ctx context.Context) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.generation++
		if err := c.cache.Invalidate(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("catalog cache invalidation failed")
		}
	})
}

func (c *GiftCatalog) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// fill 回填缓存。读取开始后发生过失效则放弃，避免旧列表覆盖失效结果。
func (c *GiftCatalog) fill(ctx context.Context, gen uint64, gifts []*domain.Gift) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	if err := c.cache.SetActive(ctx, gifts); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("catalog cache write failed")
	}
}
