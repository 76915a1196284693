package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vault/internal/service/economy/domain"
	"vault/internal/service/economy/domain/port"
)

// DefaultRegiftFee 是转赠藏品的手续费，直接销毁，不计入任何账户。
const DefaultRegiftFee int64 = 25

// MarketplaceEngine 组合账本、库存与藏品登记，提供交易、转赠和升级用例。
// 加锁顺序固定为 账户(按 ID 升序) -> 库存 -> 藏品 -> 礼物目录。
type MarketplaceEngine struct {
	txm       domain.TxManager
	ledger    *CoinLedger
	inventory *InventoryStore
	registry  *NFTRegistry
	locker    port.MintLocker
	regiftFee int64
	tracer    trace.Tracer
}

func NewMarketplaceEngine(
	txm domain.TxManager,
	ledger *CoinLedger,
	inventory *InventoryStore,
	registry *NFTRegistry,
	locker port.MintLocker,
	regiftFee int64,
	tracer trace.Tracer,
) *MarketplaceEngine {
	return &MarketplaceEngine{
		txm:       txm,
		ledger:    ledger,
		inventory: inventory,
		registry:  registry,
		locker:    locker,
		regiftFee: regiftFee,
		tracer:    tracer,
	}
}

// Buy 按挂单价购买藏品：买家扣款、卖家入账、转移所有权并撤单，整体原子完成。
func (m *MarketplaceEngine) Buy(ctx context.Context, buyer domain.Actor, tokenID string) (*BuyResult, error) {
	var res *BuyResult
	attrs := []attribute.KeyValue{attribute.String("actor.id", buyer.ID), attribute.String("token.id", tokenID)}
	err := run(ctx, m.tracer, "buy", attrs, func(ctx context.Context) error {
		if err := buyer.Validate(); err != nil {
			return err
		}
		if err := required("token_id", tokenID); err != nil {
			return err
		}
		return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			// 先无锁读取卖家，按账户顺序加锁后再锁定藏品并复核
			token, err := m.registry.Get(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			if err := checkBuyable(token, buyer.ID); err != nil {
				return err
			}
			sellerID := token.OwnerID
			if _, err := m.ledger.Lock(ctx, tx, buyer.ID, sellerID); err != nil {
				return err
			}

			token, err = m.registry.GetForUpdate(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			if err := checkBuyable(token, buyer.ID); err != nil {
				return err
			}
			if token.OwnerID != sellerID {
				return errors.Wrapf(domain.ErrNotListed, "token %s changed owner", tokenID)
			}

			price := token.Price
			buyerAcc, err := m.ledger.Debit(ctx, tx, buyer.ID, price)
			if err != nil {
				return err
			}
			if _, err := m.ledger.Credit(ctx, tx, sellerID, price); err != nil {
				return err
			}
			token, err = m.registry.TransferOwnership(ctx, tx, tokenID, buyer.ID)
			if err != nil {
				return err
			}
			res = &BuyResult{Token: token, SellerID: sellerID, Price: price, BuyerBalance: buyerAcc.Balance}
			return nil
		})
	})
	return res, err
}

func checkBuyable(token *domain.Token, buyerID string) error {
	if !token.Listed {
		return errors.Wrapf(domain.ErrNotListed, "token %s", token.ID)
	}
	if token.OwnedBy(buyerID) {
		return errors.Wrapf(domain.ErrSelfTrade, "token %s", token.ID)
	}
	return nil
}

// Regift 付费把藏品转赠给另一位用户，手续费被销毁。
func (m *MarketplaceEngine) Regift(ctx context.Context, from domain.Actor, tokenID, toUserID string) (*RegiftResult, error) {
	var res *RegiftResult
	attrs := []attribute.KeyValue{
		attribute.String("actor.id", from.ID),
		attribute.String("token.id", tokenID),
		attribute.String("receiver.id", toUserID),
	}
	err := run(ctx, m.tracer, "regift", attrs, func(ctx context.Context) error {
		if err := from.Validate(); err != nil {
			return err
		}
		if err := required("token_id", tokenID); err != nil {
			return err
		}
		if err := required("to_user", toUserID); err != nil {
			return err
		}
		if toUserID == from.ID {
			return errors.Wrap(domain.ErrValidation, "cannot regift a token to yourself")
		}
		return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			token, err := m.registry.Get(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			if !token.OwnedBy(from.ID) {
				return errors.Wrapf(domain.ErrNotOwner, "token %s", tokenID)
			}
			accounts, err := m.ledger.Lock(ctx, tx, from.ID, toUserID)
			if err != nil {
				return err
			}

			token, err = m.registry.GetForUpdate(ctx, tx, tokenID)
			if err != nil {
				return err
			}
			if !token.OwnedBy(from.ID) {
				return errors.Wrapf(domain.ErrNotOwner, "token %s", tokenID)
			}

			balance := accounts[from.ID].Balance
			if m.regiftFee > 0 {
				acc, err := m.ledger.Debit(ctx, tx, from.ID, m.regiftFee)
				if err != nil {
					return err
				}
				balance = acc.Balance
			}
			token, err = m.registry.TransferOwnership(ctx, tx, tokenID, toUserID)
			if err != nil {
				return err
			}
			res = &RegiftResult{Token: token, Fee: m.regiftFee, SenderBalance: balance}
			return nil
		})
	})
	return res, err
}

// UpgradeFromInventory 消耗一个可升级的礼物，为用户本人铸造藏品，不扣金币。
func (m *MarketplaceEngine) UpgradeFromInventory(ctx context.Context, actor domain.Actor, giftID string, price int64) (*UpgradeResult, error) {
	var res *UpgradeResult
	attrs := []attribute.KeyValue{
		attribute.String("actor.id", actor.ID),
		attribute.String("gift.id", giftID),
		attribute.Int64("token.price", price),
	}
	err := run(ctx, m.tracer, "upgrade_from_inventory", attrs, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		if err := required("gift_id", giftID); err != nil {
			return err
		}
		if price <= 0 {
			return errors.Wrapf(domain.ErrValidation, "token price must be positive, got %d", price)
		}
		return m.withMintLock(ctx, giftID, func(ctx context.Context) error {
			return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
				gift, err := tx.Gifts().Get(ctx, giftID)
				if err != nil {
					return err
				}
				if !gift.Upgradeable {
					return errors.Wrapf(domain.ErrValidation, "gift %s cannot be upgraded", giftID)
				}
				if _, err := m.inventory.Remove(ctx, tx, actor.ID, giftID, 1); err != nil {
					return err
				}
				token, err := m.registry.Mint(ctx, tx, domain.MintRequest{
					GiftID:           giftID,
					OwnerID:          actor.ID,
					CreatorID:        actor.ID,
					OriginalSenderID: actor.ID,
					Price:            price,
				})
				if err != nil {
					return err
				}
				res = &UpgradeResult{Token: token, ConsumedGift: true}
				return nil
			})
		})
	})
	return res, err
}

// AdminUpgrade 由管理员为用户铸造藏品。用户持有该礼物时扣减一个，没有也照常铸造。
func (m *MarketplaceEngine) AdminUpgrade(ctx context.Context, admin domain.Actor, ownerID, giftID string, price int64) (*UpgradeResult, error) {
	var res *UpgradeResult
	attrs := []attribute.KeyValue{
		attribute.String("actor.id", admin.ID),
		attribute.String("owner.id", ownerID),
		attribute.String("gift.id", giftID),
		attribute.Int64("token.price", price),
	}
	err := run(ctx, m.tracer, "admin_upgrade", attrs, func(ctx context.Context) error {
		if err := admin.RequireAdmin(); err != nil {
			return err
		}
		if err := required("owner_id", ownerID); err != nil {
			return err
		}
		if err := required("gift_id", giftID); err != nil {
			return err
		}
		if price <= 0 {
			return errors.Wrapf(domain.ErrValidation, "token price must be positive, got %d", price)
		}
		return m.withMintLock(ctx, giftID, func(ctx context.Context) error {
			return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
				if _, err := tx.Accounts().Get(ctx, ownerID); err != nil {
					return err
				}
				if _, err := tx.Gifts().Get(ctx, giftID); err != nil {
					return err
				}
				held, err := m.inventory.Quantity(ctx, tx, ownerID, giftID)
				if err != nil {
					return err
				}
				if held > 0 {
					if _, err := m.inventory.Remove(ctx, tx, ownerID, giftID, 1); err != nil {
						return err
					}
				}
				token, err := m.registry.Mint(ctx, tx, domain.MintRequest{
					GiftID:           giftID,
					OwnerID:          ownerID,
					CreatorID:        admin.ID,
					OriginalSenderID: admin.ID,
					Price:            price,
				})
				if err != nil {
					return err
				}
				res = &UpgradeResult{Token: token, ConsumedGift: held > 0}
				return nil
			})
		})
	})
	return res, err
}

// AdminTransfer 由管理员直接变更藏品所有者，同样强制撤单。
func (m *MarketplaceEngine) AdminTransfer(ctx context.Context, admin domain.Actor, tokenID, newOwnerID string) (*domain.Token, error) {
	var token *domain.Token
	attrs := []attribute.KeyValue{
		attribute.String("actor.id", admin.ID),
		attribute.String("token.id", tokenID),
		attribute.String("owner.id", newOwnerID),
	}
	err := run(ctx, m.tracer, "admin_transfer", attrs, func(ctx context.Context) error {
		if err := admin.RequireAdmin(); err != nil {
			return err
		}
		if err := required("token_id", tokenID); err != nil {
			return err
		}
		if err := required("owner_id", newOwnerID); err != nil {
			return err
		}
		return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if _, err := tx.Accounts().Get(ctx, newOwnerID); err != nil {
				return err
			}
			var err error
			token, err = m.registry.TransferOwnership(ctx, tx, tokenID, newOwnerID)
			return err
		})
	})
	return token, err
}

func (m *MarketplaceEngine) ListToken(ctx context.Context, owner domain.Actor, tokenID string, price int64) (*domain.Token, error) {
	return m.mutateToken(ctx, "list_token", owner, tokenID, func(ctx context.Context, tx domain.Tx) (*domain.Token, error) {
		return m.registry.List(ctx, tx, owner.ID, tokenID, price)
	})
}

func (m *MarketplaceEngine) DelistToken(ctx context.Context, owner domain.Actor, tokenID string) (*domain.Token, error) {
	return m.mutateToken(ctx, "delist_token", owner, tokenID, func(ctx context.Context, tx domain.Tx) (*domain.Token, error) {
		return m.registry.Delist(ctx, tx, owner.ID, tokenID)
	})
}

func (m *MarketplaceEngine) ToggleTokenDisplay(ctx context.Context, owner domain.Actor, tokenID string) (*domain.Token, error) {
	return m.mutateToken(ctx, "toggle_token_display", owner, tokenID, func(ctx context.Context, tx domain.Tx) (*domain.Token, error) {
		return m.registry.ToggleDisplay(ctx, tx, owner.ID, tokenID)
	})
}

// Market 返回所有挂单中的藏品，新的在前。
func (m *MarketplaceEngine) Market(ctx context.Context) ([]*domain.Token, error) {
	var tokens []*domain.Token
	err := run(ctx, m.tracer, "market", nil, func(ctx context.Context) error {
		return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			tokens, err = m.registry.ListMarket(ctx, tx)
			return err
		})
	})
	return tokens, err
}

func (m *MarketplaceEngine) OwnedTokens(ctx context.Context, userID string) ([]*domain.Token, error) {
	var tokens []*domain.Token
	err := run(ctx, m.tracer, "owned_tokens", []attribute.KeyValue{attribute.String("user.id", userID)}, func(ctx context.Context) error {
		if err := required("user_id", userID); err != nil {
			return err
		}
		return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			tokens, err = m.registry.ListOwned(ctx, tx, userID)
			return err
		})
	})
	return tokens, err
}

func (m *MarketplaceEngine) Token(ctx context.Context, tokenID string) (*domain.Token, error) {
	var token *domain.Token
	err := m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		token, err = m.registry.Get(ctx, tx, tokenID)
		return err
	})
	return token, err
}

func (m *MarketplaceEngine) mutateToken(
	ctx context.Context,
	op string,
	owner domain.Actor,
	tokenID string,
	fn func(ctx context.Context, tx domain.Tx) (*domain.Token, error),
) (*domain.Token, error) {
	var token *domain.Token
	attrs := []attribute.KeyValue{attribute.String("actor.id", owner.ID), attribute.String("token.id", tokenID)}
	err := run(ctx, m.tracer, op, attrs, func(ctx context.Context) error {
		if err := owner.Validate(); err != nil {
			return err
		}
		if err := required("token_id", tokenID); err != nil {
			return err
		}
		return m.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			token, err = fn(ctx, tx)
			return err
		})
	})
	return token, err
}

func (m *MarketplaceEngine) withMintLock(ctx context.Context, giftID string, fn func(ctx context.Context) error) error {
	if m.locker == nil {
		return fn(ctx)
	}
	unlock, err := m.locker.Acquire(ctx, giftID)
	if err != nil {
		return errors.Wrapf(err, "acquire mint lock for %s", giftID)
	}
	defer unlock()
	return fn(ctx)
}
