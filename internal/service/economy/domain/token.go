package domain

import (
	"time"

	"github.com/pkg/errors"
)

// BackgroundVariants 是 NFT 背景样式的数量，取值范围 1..BackgroundVariants。
const BackgroundVariants = 5

// Token 是由目录礼物铸造出的唯一藏品。
type Token struct {
	ID               string
	GiftID           string
	OwnerID          string
	CreatorID        string
	OriginalSenderID string
	Serial           int64
	Background       int
	Price            int64
	Listed           bool
	Displayed        bool
	CreatedAt        time.Time
}

func (t *Token) OwnedBy(userID string) bool {
	return t.OwnerID == userID
}

// List 以指定价格挂单。
func (t *Token) List(ownerID string, price int64) error {
	if !t.OwnedBy(ownerID) {
		return errors.Wrapf(ErrNotOwner, "token %s", t.ID)
	}
	if price <= 0 {
		return errors.Wrapf(ErrValidation, "listing price must be positive, got %d", price)
	}
	t.Price = price
	t.Listed = true
	return nil
}

// Delist 撤单，保留最后一次挂单价格。对未挂单的藏品是空操作。
func (t *Token) Delist(ownerID string) error {
	if !t.OwnedBy(ownerID) {
		return errors.Wrapf(ErrNotOwner, "token %s", t.ID)
	}
	t.Listed = false
	return nil
}

// TransferTo 变更所有者。任何所有权转移都会强制撤单，展示状态也归新主人重新决定。
func (t *Token) TransferTo(newOwnerID string) {
	t.OwnerID = newOwnerID
	t.Listed = false
	t.Displayed = false
}

// MintRequest 描述一次铸造。
type MintRequest struct {
	GiftID           string
	OwnerID          string
	CreatorID        string
	OriginalSenderID string
	Price            int64
}
