package infrastructure

import (
	"encoding/json"

	"vault/internal/service/economy/domain"
)

// ToDomainAccount 将数据库模型转换为领域模型
func ToDomainAccount(m *AccountModel) *domain.Account {
	if m == nil {
		return nil
	}
	return &domain.Account{
		UserID:    m.UserID,
		Role:      domain.Role(m.Role),
		Balance:   m.Coins,
		CreatedAt: m.CreatedAt,
	}
}

func FromDomainAccount(a *domain.Account) *AccountModel {
	return &AccountModel{
		UserID:    a.UserID,
		Role:      string(a.Role),
		Coins:     a.Balance,
		CreatedAt: a.CreatedAt,
	}
}

func ToDomainGift(m *GiftModel) *domain.Gift {
	if m == nil {
		return nil
	}
	return &domain.Gift{
		ID:          m.ID,
		Name:        m.Name,
		Price:       m.Price,
		ImageRef:    m.ImageURL,
		Rare:        m.IsRare,
		CreatedBy:   m.CreatedBy,
		Stock:       m.Quantity,
		Active:      m.IsActive,
		Upgradeable: m.Upgradeable,
		MintedCount: m.MintedCount,
		CreatedAt:   m.CreatedAt,
	}
}

func FromDomainGift(g *domain.Gift) *GiftModel {
	return &GiftModel{
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

func ToDomainInventory(m *InventoryModel) *domain.InventoryEntry {
	if m == nil {
		return nil
	}
	return &domain.InventoryEntry{
		UserID:    m.UserID,
		GiftID:    m.GiftID,
		Quantity:  m.Quantity,
		Displayed: m.DisplayedInProfile,
	}
}

func ToDomainToken(m *TokenModel) *domain.Token {
	if m == nil {
		return nil
	}
	return &domain.Token{
		ID:               m.TokenID,
		GiftID:           m.BaseGiftID,
		OwnerID:          m.OwnerID,
		CreatorID:        m.CreatorAdminID,
		OriginalSenderID: m.OriginalSenderID,
		Serial:           m.SerialNumber,
		Background:       m.BgVariant,
		Price:            m.Price,
		Listed:           m.IsListed,
		Displayed:        m.DisplayedInProfile,
		CreatedAt:        m.CreatedAt,
	}
}

func FromDomainToken(t *domain.Token) *TokenModel {
	return &TokenModel{
		TokenID:            t.ID,
		BaseGiftID:         t.GiftID,
		SerialNumber:       t.Serial,
		OwnerID:            t.OwnerID,
		CreatorAdminID:     t.CreatorID,
		OriginalSenderID:   t.OriginalSenderID,
		BgVariant:          t.Background,
		Price:              t.Price,
		IsListed:           t.Listed,
		DisplayedInProfile: t.Displayed,
		CreatedAt:          t.CreatedAt,
	}
}

func ToDomainChatRecord(m *OutboxModel) (*domain.ChatRecord, error) {
	var participants []string
	if err := json.Unmarshal([]byte(m.Participants), &participants); err != nil {
		return nil, err
	}
	return &domain.ChatRecord{
		ID:           m.ID,
		ChatID:       m.ChatID,
		Participants: participants,
		SenderID:     m.SenderID,
		Text:         m.Text,
		GiftID:       m.GiftID,
		Deletable:    m.Deletable,
		CreatedAt:    m.CreatedAt,
		Delivered:    m.Delivered,
		Attempts:     m.Attempts,
		LastError:    m.LastError,
	}, nil
}

func FromDomainChatRecord(r *domain.ChatRecord) (*OutboxModel, error) {
	participants, err := json.Marshal(r.Participants)
	if err != nil {
		return nil, err
	}
	return &OutboxModel{
		ID:           r.ID,
		ChatID:       r.ChatID,
		Participants: string(participants),
		SenderID:     r.SenderID,
		Text:         r.Text,
		GiftID:       r.GiftID,
		Deletable:    r.Deletable,
		Delivered:    r.Delivered,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
	}, nil
}
