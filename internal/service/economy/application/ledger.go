package application

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"vault/internal/service/economy/domain"
)

// CoinLedger 是金币余额的唯一修改入口。所有方法都在调用方传入的事务内执行。
type CoinLedger struct {
	startingBalance int64
	now             func() time.Time
}

func NewCoinLedger(startingBalance int64) *CoinLedger {
	return &CoinLedger{startingBalance: startingBalance, now: time.Now}
}

// Open 为用户开户并发放初始金币，已存在时直接返回现有账户。
func (l *CoinLedger) Open(ctx context.Context, tx domain.Tx, userID string, role domain.Role) (*domain.Account, error) {
	acc, err := tx.Accounts().Get(ctx, userID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	acc = &domain.Account{UserID: userID, Role: role, Balance: l.startingBalance, CreatedAt: l.now()}
	if err := tx.Accounts().Create(ctx, acc); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return tx.Accounts().Get(ctx, userID)
		}
		return nil, err
	}
	return acc, nil
}

// Lock 按用户 ID 升序锁定账户，所有跨账户用例都必须先通过它加锁。
func (l *CoinLedger) Lock(ctx context.Context, tx domain.Tx, userIDs ...string) (map[string]*domain.Account, error) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	locked := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		acc, err := tx.Accounts().GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = acc
	}
	return locked, nil
}

func (l *CoinLedger) Debit(ctx context.Context, tx domain.Tx, userID string, amount int64) (*domain.Account, error) {
	acc, err := tx.Accounts().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := acc.Debit(amount); err != nil {
		return nil, err
	}
	if err := tx.Accounts().Save(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (l *CoinLedger) Credit(ctx context.Context, tx domain.Tx, userID string, amount int64) (*domain.Account, error) {
	acc, err := tx.Accounts().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := acc.Credit(amount); err != nil {
		return nil, err
	}
	if err := tx.Accounts().Save(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (l *CoinLedger) Balance(ctx context.Context, tx domain.Tx, userID string) (int64, error) {
	acc, err := tx.Accounts().Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// SetBalance 是管理员直接覆盖余额的入口。
func (l *CoinLedger) SetBalance(ctx context.Context, tx domain.Tx, userID string, coins int64) (*domain.Account, error) {
	if coins < 0 {
		return nil, errors.Wrapf(domain.ErrValidation, "balance cannot be negative, got %d", coins)
	}
	acc, err := tx.Accounts().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	acc.Balance = coins
	if err := tx.Accounts().Save(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}
