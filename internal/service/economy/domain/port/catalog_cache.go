package port

import (
	"context"

	"vault/internal/service/economy/domain"
)

// CatalogCache 缓存在售礼物列表。
type CatalogCache interface {
	// GetActive 返回缓存的列表，未命中时 ok 为 false。
	GetActive(ctx context.Context) (gifts []*domain.Gift, ok bool, err error)
	SetActive(ctx context.Context, gifts []*domain.Gift) error
	Invalidate(ctx context.Context) error
}
