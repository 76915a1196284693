package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Account 是用户的金币账户。余额只能通过 CoinLedger 修改，且永远不小于 0。
type Account struct {
	UserID    string
	Role      Role
	Balance   int64
	CreatedAt time.Time
}

// Debit 扣款，余额不足时返回 ErrInsufficientFunds 且不修改余额。
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(ErrValidation, "debit amount must be positive, got %d", amount)
	}
	if a.Balance < amount {
		return errors.Wrapf(ErrInsufficientFunds, "user %s has %d, needs %d", a.UserID, a.Balance, amount)
	}
	a.Balance -= amount
	return nil
}

// Credit 入账，结果超出 int64 范围时拒绝且不修改余额。
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(ErrValidation, "credit amount must be positive, got %d", amount)
	}
	if amount > math.MaxInt64-a.Balance {
		return errors.Wrapf(ErrValidation, "credit of %d overflows balance %d of user %s", amount, a.Balance, a.UserID)
	}
	a.Balance += amount
	return nil
}
