package application

import (
	"context"

	"github.com/pkg/errors"

	"vault/internal/service/economy/domain"
)

// InventoryStore 管理用户持有的普通礼物。数量归零时删除记录。
type InventoryStore struct{}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{}
}

func (s *InventoryStore) Add(ctx context.Context, tx domain.Tx, userID, giftID string, qty int64) error {
	if qty <= 0 {
		return errors.Wrapf(domain.ErrValidation, "quantity must be positive, got %d", qty)
	}
	return tx.Inventory().Increment(ctx, userID, giftID, qty)
}

// Remove 扣减持有数量，返回剩余数量。
func (s *InventoryStore) Remove(ctx context.Context, tx domain.Tx, userID, giftID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, errors.Wrapf(domain.ErrValidation, "quantity must be positive, got %d", qty)
	}
	entry, err := tx.Inventory().GetForUpdate(ctx, userID, giftID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, errors.Wrapf(domain.ErrInsufficientQuantity, "user %s holds no %s", userID, giftID)
	}
	if err != nil {
		return 0, err
	}
	if entry.Quantity < qty {
		return 0, errors.Wrapf(domain.ErrInsufficientQuantity, "user %s holds %d of %s, needs %d", userID, entry.Quantity, giftID, qty)
	}
	entry.Quantity -= qty
	if entry.Quantity == 0 {
		return 0, tx.Inventory().Delete(ctx, userID, giftID)
	}
	return entry.Quantity, tx.Inventory().Save(ctx, entry)
}

// Quantity 返回持有数量，没有记录时为 0。
func (s *InventoryStore) Quantity(ctx context.Context, tx domain.Tx, userID, giftID string) (int64, error) {
	entry, err := tx.Inventory().Get(ctx, userID, giftID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.Quantity, nil
}

// ToggleDisplay 切换礼物在主页的展示状态，返回新状态。
func (s *InventoryStore) ToggleDisplay(ctx context.Context, tx domain.Tx, userID, giftID string) (bool, error) {
	entry, err := tx.Inventory().GetForUpdate(ctx, userID, giftID)
	if err != nil {
		return false, err
	}
	entry.Displayed = !entry.Displayed
	if err := tx.Inventory().Save(ctx, entry); err != nil {
		return false, err
	}
	return entry.Displayed, nil
}

func (s *InventoryStore) Query(ctx context.Context, tx domain.Tx, userID string) ([]*domain.InventoryItem, error) {
	return tx.Inventory().ListByUser(ctx, userID)
}

func (s *InventoryStore) Displayed(ctx context.Context, tx domain.Tx, userID string) ([]*domain.InventoryItem, error) {
	items, err := s.Query(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.Displayed {
			out = append(out, it)
		}
	}
	return out, nil
}
