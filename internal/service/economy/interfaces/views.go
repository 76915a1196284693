package interfaces

import (
	"time"

	"vault/internal/service/economy/application"
	"vault/internal/service/economy/domain"
)

type giftView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	ImageURL    string    `json:"image_url"`
	IsRare      bool      `json:"is_rare"`
	CreatedBy   string    `json:"created_by"`
	Quantity    int64     `json:"quantity"`
	IsActive    bool      `json:"is_active"`
	Upgradeable bool      `json:"upgradeable"`
	MintedCount int64     `json:"minted_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func toGiftView(g *domain.Gift) *giftView {
	if g == nil {
		return nil
	}
	return &giftView{
		ID:          g.ID,
		Name:        g.Name,
		Price:       g.Price,
		ImageURL:    g.ImageRef,
		IsRare:      g.Rare,
		CreatedBy:   g.CreatedBy,
		Quantity:    g.Stock,
		IsActive:    g.Active,
		Upgradeable: g.Upgradeable,
		MintedCount: g.MintedCount,
		CreatedAt:   g.CreatedAt,
	}
}

func toGiftViews(gifts []*domain.Gift) []*giftView {
	out := make([]*giftView, len(gifts))
	for i, g := range gifts {
		out[i] = toGiftView(g)
	}
	return out
}

type tokenView struct {
	TokenID          string    `json:"token_id"`
	BaseGiftID       string    `json:"base_gift_id"`
	OwnerID          string    `json:"owner_id"`
	CreatorAdminID   string    `json:"creator_admin_id"`
	OriginalSenderID string    `json:"original_sender_id"`
	SerialNumber     int64     `json:"serial_number"`
	BgVariant        int       `json:"bg_variant"`
	Price            int64     `json:"price"`
	IsListed         bool      `json:"is_listed"`
	Displayed        bool      `json:"displayed_in_profile"`
	CreatedAt        time.Time `json:"created_at"`
}

func toTokenView(t *domain.Token) *tokenView {
	if t == nil {
		return nil
	}
	return &tokenView{
		TokenID:          t.ID,
		BaseGiftID:       t.GiftID,
		OwnerID:          t.OwnerID,
		CreatorAdminID:   t.CreatorID,
		OriginalSenderID: t.OriginalSenderID,
		SerialNumber:     t.Serial,
		BgVariant:        t.Background,
		Price:            t.Price,
		IsListed:         t.Listed,
		Displayed:        t.Displayed,
		CreatedAt:        t.CreatedAt,
	}
}

func toTokenViews(tokens []*domain.Token) []*tokenView {
	out := make([]*tokenView, len(tokens))
	for i, t := range tokens {
		out[i] = toTokenView(t)
	}
	return out
}

type inventoryView struct {
	GiftID      string `json:"gift_id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	IsRare      bool   `json:"is_rare"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Displayed   bool   `json:"displayed_in_profile"`
	Upgradeable bool   `json:"upgradeable"`
}

func toInventoryViews(items []*domain.InventoryItem) []*inventoryView {
	out := make([]*inventoryView, len(items))
	for i, it := range items {
		out[i] = &inventoryView{
			GiftID:      it.GiftID,
			Name:        it.Name,
			ImageURL:    it.ImageRef,
			IsRare:      it.Rare,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Displayed:   it.Displayed,
			Upgradeable: it.Upgradeable,
		}
	}
	return out
}

type accountView struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Coins  int64  `json:"coins"`
}

func toAccountView(a *domain.Account) *accountView {
	return &accountView{UserID: a.UserID, Role: string(a.Role), Coins: a.Balance}
}

type recordView struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	Participants []string  `json:"participants"`
	SenderID     string    `json:"sender_id"`
	Text         string    `json:"text"`
	GiftID       string    `json:"gift_id"`
	Deletable    bool      `json:"deletable"`
	CreatedAt    time.Time `json:"created_at"`
}

type sendGiftView struct {
	Gift          *giftView   `json:"gift"`
	Record        *recordView `json:"record"`
	SenderBalance int64       `json:"sender_balance"`
}

func toSendGiftView(res *application.SendGiftResult) *sendGiftView {
	rec := res.Record
	return &sendGiftView{
		Gift: toGiftView(res.Gift),
		Record: &recordView{
			ID:           rec.ID,
			ChatID:       rec.ChatID,
			Participants: rec.Participants,
			SenderID:     rec.SenderID,
			Text:         rec.Text,
			GiftID:       rec.GiftID,
			Deletable:    rec.Deletable,
			CreatedAt:    rec.CreatedAt,
		},
		SenderBalance: res.SenderBalance,
	}
}

type buyView struct {
	Token        *tokenView `json:"token"`
	SellerID     string     `json:"seller_id"`
	Price        int64      `json:"price"`
	BuyerBalance int64      `json:"buyer_balance"`
}

type regiftView struct {
	Token         *tokenView `json:"token"`
	Fee           int64      `json:"fee"`
	SenderBalance int64      `json:"sender_balance"`
}

type upgradeView struct {
	Token        *tokenView `json:"token"`
	ConsumedGift bool       `json:"consumed_gift"`
}

type showcaseView struct {
	Gifts  []*inventoryView `json:"gifts"`
	Tokens []*tokenView     `json:"tokens"`
}
