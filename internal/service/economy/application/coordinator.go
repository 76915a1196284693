package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vault/internal/service/economy/domain"
	"vault/internal/service/economy/domain/port"
)

// Coordinator 是经济系统对 API 层的统一入口，负责送礼、回收等跨聚合流程，
// 以及目录、账户相关的管理用例。角色校验只在这里做一次。
type Coordinator struct {
	txm       domain.TxManager
	ledger    *CoinLedger
	catalog   *GiftCatalog
	inventory *InventoryStore
	registry  *NFTRegistry
	market    *MarketplaceEngine
	payout    port.PayoutPolicy
	tracer    trace.Tracer

	newID func() string
	now   func() time.Time
}

func NewCoordinator(
	txm domain.TxManager,
	ledger *CoinLedger,
	catalog *GiftCatalog,
	inventory *InventoryStore,
	registry *NFTRegistry,
	market *MarketplaceEngine,
	payout port.PayoutPolicy,
	tracer trace.Tracer,
) *Coordinator {
	if payout == nil {
		payout = FixedPayoutPolicy{}
	}
	return &Coordinator{
		txm:       txm,
		ledger:    ledger,
		catalog:   catalog,
		inventory: inventory,
		registry:  registry,
		market:    market,
		payout:    payout,
		tracer:    tracer,
		newID:     newRecordID,
		now:       time.Now,
	}
}

// FixedPayoutPolicy 使用内置的回收比例。
type FixedPayoutPolicy struct{}

func (FixedPayoutPolicy) UnitPayout(price int64, rare bool) (int64, error) {
	return domain.DefaultUnitPayout(price, rare), nil
}

// SendGift 购买礼物并送给接收者：扣款、入库、扣减库存并写入会话记录，全部在同一事务内完成。
func (c *Coordinator) SendGift(ctx context.Context, sender domain.Actor, receiverID, giftID string) (*SendGiftResult, error) {
	var res *SendGiftResult
	attrs := []attribute.KeyValue{
		attribute.String("actor.id", sender.ID),
		attribute.String("receiver.id", receiverID),
		attribute.String("gift.id", giftID),
	}
	err := run(ctx, c.tracer, "send_gift", attrs, func(ctx context.Context) error {
		if err := sender.Validate(); err != nil {
			return err
		}
		if err := required("receiver_id", receiverID); err != nil {
			return err
		}
		if err := required("gift_id", giftID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			gift, err := c.catalog.Get(ctx, tx, giftID)
			if err != nil {
				return err
			}
			if !gift.Active {
				return errors.Wrapf(domain.ErrNotFound, "gift %s is not available", giftID)
			}
			if gift.Stock == 0 {
				return errors.Wrapf(domain.ErrSoldOut, "gift %s", giftID)
			}
			if _, err := tx.Accounts().Get(ctx, receiverID); err != nil {
				return err
			}

			acc, err := c.ledger.Debit(ctx, tx, sender.ID, gift.Price)
			if err != nil {
				return err
			}
			if err := c.inventory.Add(ctx, tx, receiverID, giftID, 1); err != nil {
				return err
			}
			gift, err = c.catalog.DecrementStock(ctx, tx, giftID)
			if err != nil {
				return err
			}

			record := domain.NewGiftRecord(c.newID(), sender.ID, receiverID, gift, c.now())
			if err := tx.Outbox().Append(ctx, record); err != nil {
				return err
			}
			res = &SendGiftResult{Gift: gift, Record: record, SenderBalance: acc.Balance}
			return nil
		})
	})
	return res, err
}

// SellGift 把持有的礼物回收为金币。
func (c *Coordinator) SellGift(ctx context.Context, actor domain.Actor, giftID string, qty int64) (*SellGiftResult, error) {
	var res *SellGiftResult
	attrs := []attribute.KeyValue{
		attribute.String("actor.id", actor.ID),
		attribute.String("gift.id", giftID),
		attribute.Int64("quantity", qty),
	}
	err := run(ctx, c.tracer, "sell_gift", attrs, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		if err := required("gift_id", giftID); err != nil {
			return err
		}
		if qty <= 0 {
			return errors.Wrapf(domain.ErrValidation, "quantity must be positive, got %d", qty)
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			gift, err := c.catalog.Get(ctx, tx, giftID)
			if err != nil {
				return err
			}
			accounts, err := c.ledger.Lock(ctx, tx, actor.ID)
			if err != nil {
				return err
			}
			remaining, err := c.inventory.Remove(ctx, tx, actor.ID, giftID, qty)
			if err != nil {
				return err
			}
			unit, err := c.payout.UnitPayout(gift.Price, gift.Rare)
			if err != nil {
				return err
			}
			total := unit * qty
			balance := accounts[actor.ID].Balance
			if total > 0 {
				acc, err := c.ledger.Credit(ctx, tx, actor.ID, total)
				if err != nil {
					return err
				}
				balance = acc.Balance
			}
			res = &SellGiftResult{
				GiftID:     giftID,
				Quantity:   qty,
				UnitPayout: unit,
				Payout:     total,
				Balance:    balance,
				Remaining:  remaining,
			}
			return nil
		})
	})
	return res, err
}

// UpgradeFromInventory 见 MarketplaceEngine.UpgradeFromInventory。
func (c *Coordinator) UpgradeFromInventory(ctx context.Context, actor domain.Actor, giftID string, price int64) (*UpgradeResult, error) {
	return c.market.UpgradeFromInventory(ctx, actor, giftID, price)
}

// AdminUpgrade 见 MarketplaceEngine.AdminUpgrade。
func (c *Coordinator) AdminUpgrade(ctx context.Context, admin domain.Actor, ownerID, giftID string, price int64) (*UpgradeResult, error) {
	return c.market.AdminUpgrade(ctx, admin, ownerID, giftID, price)
}

func (c *Coordinator) ActiveGifts(ctx context.Context) ([]*domain.Gift, error) {
	var gifts []*domain.Gift
	err := run(ctx, c.tracer, "list_active_gifts", nil, func(ctx context.Context) error {
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			gifts, err = c.catalog.ListActive(ctx, tx)
			return err
		})
	})
	return gifts, err
}

func (c *Coordinator) CreateGift(ctx context.Context, admin domain.Actor, spec domain.GiftSpec) (*domain.Gift, error) {
	var gift *domain.Gift
	err := run(ctx, c.tracer, "create_gift", []attribute.KeyValue{attribute.String("actor.id", admin.ID)}, func(ctx context.Context) error {
		if err := admin.RequireAdmin(); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			gift, err = c.catalog.Create(ctx, tx, admin.ID, spec)
			return err
		})
	})
	return gift, err
}

func (c *Coordinator) DeactivateGift(ctx context.Context, admin domain.Actor, giftID string) (*domain.Gift, error) {
	return c.adminGiftUpdate(ctx, "deactivate_gift", admin, giftID, func(ctx context.Context, tx domain.Tx) (*domain.Gift, error) {
		return c.catalog.Deactivate(ctx, tx, giftID)
	})
}

func (c *Coordinator) SetGiftUpgradeable(ctx context.Context, admin domain.Actor, giftID string, upgradeable bool) (*domain.Gift, error) {
	return c.adminGiftUpdate(ctx, "set_gift_upgradeable", admin, giftID, func(ctx context.Context, tx domain.Tx) (*domain.Gift, error) {
		return c.catalog.SetUpgradeable(ctx, tx, giftID, upgradeable)
	})
}

// CreatedGifts 返回管理员自己创建的礼物。
func (c *Coordinator) CreatedGifts(ctx context.Context, admin domain.Actor) ([]*domain.Gift, error) {
	var gifts []*domain.Gift
	err := run(ctx, c.tracer, "list_created_gifts", []attribute.KeyValue{attribute.String("actor.id", admin.ID)}, func(ctx context.Context) error {
		if err := admin.RequireAdmin(); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			gifts, err = c.catalog.ListByCreator(ctx, tx, admin.ID)
			return err
		})
	})
	return gifts, err
}

// SeedCatalog 在启动时写入默认礼物，目录非空时跳过。
func (c *Coordinator) SeedCatalog(ctx context.Context, specs []domain.GiftSpec) (int, error) {
	var n int
	err := c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		n, err = c.catalog.Seed(ctx, tx, specs)
		return err
	})
	return n, err
}

// OpenAccount 为调用方开户，重复调用返回已有账户。
func (c *Coordinator) OpenAccount(ctx context.Context, actor domain.Actor) (*domain.Account, error) {
	var acc *domain.Account
	err := run(ctx, c.tracer, "open_account", []attribute.KeyValue{attribute.String("actor.id", actor.ID)}, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			acc, err = c.ledger.Open(ctx, tx, actor.ID, actor.Role)
			return err
		})
	})
	return acc, err
}

func (c *Coordinator) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := run(ctx, c.tracer, "balance", []attribute.KeyValue{attribute.String("user.id", userID)}, func(ctx context.Context) error {
		if err := required("user_id", userID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			balance, err = c.ledger.Balance(ctx, tx, userID)
			return err
		})
	})
	return balance, err
}

func (c *Coordinator) SetBalance(ctx context.Context, admin domain.Actor, userID string, coins int64) (*domain.Account, error) {
	var acc *domain.Account
	attrs := []attribute.KeyValue{attribute.String("actor.id", admin.ID), attribute.String("user.id", userID)}
	err := run(ctx, c.tracer, "set_balance", attrs, func(ctx context.Context) error {
		if err := admin.RequireAdmin(); err != nil {
			return err
		}
		if err := required("user_id", userID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			acc, err = c.ledger.SetBalance(ctx, tx, userID, coins)
			return err
		})
	})
	return acc, err
}

func (c *Coordinator) Inventory(ctx context.Context, userID string) ([]*domain.InventoryItem, error) {
	var items []*domain.InventoryItem
	err := run(ctx, c.tracer, "inventory", []attribute.KeyValue{attribute.String("user.id", userID)}, func(ctx context.Context) error {
		if err := required("user_id", userID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			items, err = c.inventory.Query(ctx, tx, userID)
			return err
		})
	})
	return items, err
}

func (c *Coordinator) ToggleGiftDisplay(ctx context.Context, actor domain.Actor, giftID string) (bool, error) {
	var displayed bool
	attrs := []attribute.KeyValue{attribute.String("actor.id", actor.ID), attribute.String("gift.id", giftID)}
	err := run(ctx, c.tracer, "toggle_gift_display", attrs, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		if err := required("gift_id", giftID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			displayed, err = c.inventory.ToggleDisplay(ctx, tx, actor.ID, giftID)
			return err
		})
	})
	return displayed, err
}

// Showcase 返回用户主页上展示的礼物和藏品。
func (c *Coordinator) Showcase(ctx context.Context, userID string) (*Showcase, error) {
	var sc *Showcase
	err := run(ctx, c.tracer, "showcase", []attribute.KeyValue{attribute.String("user.id", userID)}, func(ctx context.Context) error {
		if err := required("user_id", userID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			gifts, err := c.inventory.Displayed(ctx, tx, userID)
			if err != nil {
				return err
			}
			tokens, err := c.registry.Displayed(ctx, tx, userID)
			if err != nil {
				return err
			}
			sc = &Showcase{Gifts: gifts, Tokens: tokens}
			return nil
		})
	})
	return sc, err
}

func (c *Coordinator) adminGiftUpdate(
	ctx context.Context,
	op string,
	admin domain.Actor,
	giftID string,
	fn func(ctx context.Context, tx domain.Tx) (*domain.Gift, error),
) (*domain.Gift, error) {
	var gift *domain.Gift
	attrs := []attribute.KeyValue{attribute.String("actor.id", admin.ID), attribute.String("gift.id", giftID)}
	err := run(ctx, c.tracer, op, attrs, func(ctx context.Context) error {
		if err := admin.RequireAdmin(); err != nil {
			return err
		}
		if err := required("gift_id", giftID); err != nil {
			return err
		}
		return c.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			gift, err = fn(ctx, tx)
			return err
		})
	})
	return gift, err
}
