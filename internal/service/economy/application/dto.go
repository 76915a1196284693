package application

import "vault/internal/service/economy/domain"

// SendGiftResult 是送礼成功后的结果。
type SendGiftResult struct {
	Gift          *domain.Gift       `json:"gift"`
	Record        *domain.ChatRecord `json:"record"`
	SenderBalance int64              `json:"sender_balance"`
}

// SellGiftResult 是回收礼物后的结果。
type SellGiftResult struct {
	GiftID     string `json:"gift_id"`
	Quantity   int64  `json:"quantity"`
	UnitPayout int64  `json:"unit_payout"`
	Payout     int64  `json:"payout"`
	Balance    int64  `json:"balance"`
	Remaining  int64  `json:"remaining"`
}

type BuyResult struct {
	Token        *domain.Token `json:"token"`
	SellerID     string        `json:"seller_id"`
	Price        int64         `json:"price"`
	BuyerBalance int64         `json:"buyer_balance"`
}

type RegiftResult struct {
	Token         *domain.Token `json:"token"`
	Fee           int64         `json:"fee"`
	SenderBalance int64         `json:"sender_balance"`
}

type UpgradeResult struct {
	Token *domain.Token `json:"token"`
	// ConsumedGift 为 false 表示管理员铸造时用户并未持有该礼物。
	ConsumedGift bool `json:"consumed_gift"`
}

// Showcase 是用户主页展示的礼物与藏品。
type Showcase struct {
	Gifts  []*domain.InventoryItem `json:"gifts"`
	Tokens []*domain.Token         `json:"tokens"`
}
