package application

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"vault/internal/service/economy/domain"
)

// NFTRegistry 负责藏品的铸造、所有权和挂单状态。
type NFTRegistry struct {
	random domain.RandomSource
	newID  func() string
	now    func() time.Time
}

func NewNFTRegistry(random domain.RandomSource) *NFTRegistry {
	if random == nil {
		random = domain.DefaultRandom()
	}
	return &NFTRegistry{random: domain.SyncRandom(random), newID: newTokenID, now: time.Now}
}

// Mint 锁定底层礼物行，分配下一个序列号并创建藏品。
func (r *NFTRegistry) Mint(ctx context.Context, tx domain.Tx, req domain.MintRequest) (*domain.Token, error) {
	if req.Price <= 0 {
		return nil, errors.Wrapf(domain.ErrValidation, "token price must be positive, got %d", req.Price)
	}
	if req.OwnerID == "" || req.CreatorID == "" || req.OriginalSenderID == "" {
		return nil, errors.Wrap(domain.ErrValidation, "owner, creator and original sender are required")
	}

	gift, err := tx.Gifts().GetForUpdate(ctx, req.GiftID)
	if err != nil {
		return nil, err
	}
	serial := gift.NextSerial()
	if err := tx.Gifts().Save(ctx, gift); err != nil {
		return nil, err
	}

	token := &domain.Token{
		ID:               r.newID(),
		GiftID:           gift.ID,
		OwnerID:          req.OwnerID,
		CreatorID:        req.CreatorID,
		OriginalSenderID: req.OriginalSenderID,
		Serial:           serial,
		Background:       r.random.IntN(domain.BackgroundVariants) + 1,
		Price:            req.Price,
		CreatedAt:        r.now(),
	}
	if err := tx.Tokens().Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (r *NFTRegistry) Get(ctx context.Context, tx domain.Tx, tokenID string) (*domain.Token, error) {
	return tx.Tokens().Get(ctx, tokenID)
}

func (r *NFTRegistry) GetForUpdate(ctx context.Context, tx domain.Tx, tokenID string) (*domain.Token, error) {
	return tx.Tokens().GetForUpdate(ctx, tokenID)
}

// TransferOwnership 变更所有者并强制撤单。
func (r *NFTRegistry) TransferOwnership(ctx context.Context, tx domain.Tx, tokenID, newOwnerID string) (*domain.Token, error) {
	token, err := tx.Tokens().GetForUpdate(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	token.TransferTo(newOwnerID)
	if err := tx.Tokens().Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (r *NFTRegistry) List(ctx context.Context, tx domain.Tx, ownerID, tokenID string, price int64) (*domain.Token, error) {
	return r.update(ctx, tx, tokenID, func(t *domain.Token) (bool, error) {
		return true, t.List(ownerID, price)
	})
}

// Delist 对已撤单的藏品不做任何写入。
func (r *NFTRegistry) Delist(ctx context.Context, tx domain.Tx, ownerID, tokenID string) (*domain.Token, error) {
	return r.update(ctx, tx, tokenID, func(t *domain.Token) (bool, error) {
		wasListed := t.Listed
		return wasListed, t.Delist(ownerID)
	})
}

func (r *NFTRegistry) ToggleDisplay(ctx context.Context, tx domain.Tx, ownerID, tokenID string) (*domain.Token, error) {
	return r.update(ctx, tx, tokenID, func(t *domain.Token) (bool, error) {
		if !t.OwnedBy(ownerID) {
			return false, errors.Wrapf(domain.ErrNotOwner, "token %s", tokenID)
		}
		t.Displayed = !t.Displayed
		return true, nil
	})
}

func (r *NFTRegistry) ListMarket(ctx context.Context, tx domain.Tx) ([]*domain.Token, error) {
	return tx.Tokens().ListListed(ctx)
}

func (r *NFTRegistry) ListOwned(ctx context.Context, tx domain.Tx, ownerID string) ([]*domain.Token, error) {
	return tx.Tokens().ListByOwner(ctx, ownerID)
}

func (r *NFTRegistry) ListByGift(ctx context.Context, tx domain.Tx, giftID string) ([]*domain.Token, error) {
	return tx.Tokens().ListByGift(ctx, giftID)
}

func (r *NFTRegistry) Displayed(ctx context.Context, tx domain.Tx, ownerID string) ([]*domain.Token, error) {
	tokens, err := r.ListOwned(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	out := tokens[:0]
	for _, t := range tokens {
		if t.Displayed {
			out = append(out, t)
		}
	}
	return out, nil
}

// update 锁定藏品后执行 mutate，mutate 返回 false 时跳过写入。
func (r *NFTRegistry) update(ctx context.Context, tx domain.Tx, tokenID string, mutate func(*domain.Token) (bool, error)) (*domain.Token, error) {
	token, err := tx.Tokens().GetForUpdate(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	dirty, err := mutate(token)
	if err != nil {
		return nil, err
	}
	if dirty {
		if err := tx.Tokens().Save(ctx, token); err != nil {
			return nil, err
		}
	}
	return token, nil
}
