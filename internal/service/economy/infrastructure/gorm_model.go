package infrastructure

import "time"

// AccountModel 对应数据库中的 users 表，只包含经济系统关心的列。
type AccountModel struct {
	UserID    string `gorm:"column:user_id;primaryKey;size:64"`
	Role      string `gorm:"size:16;not null"`
	Coins     int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (AccountModel) TableName() string {
	return "users"
}

// GiftModel 对应 gifts 表。quantity 为 -1 表示不限量。
type GiftModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:128;not null"`
	Price       int64  `gorm:"not null"`
	ImageURL    string `gorm:"size:512;not null"`
	IsRare      bool   `gorm:"not null"`
	CreatedBy   string `gorm:"size:64;index"`
	Quantity    int64  `gorm:"not null"`
	IsActive    bool   `gorm:"not null;index"`
	Upgradeable bool   `gorm:"not null"`
	MintedCount int64  `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (GiftModel) TableName() string {
	return "gifts"
}

// InventoryModel 对应 user_inventory 表，(user_id, gift_id) 为联合主键。
type InventoryModel struct {
	UserID             string `gorm:"primaryKey;size:64"`
	GiftID             string `gorm:"primaryKey;size:64"`
	Quantity           int64  `gorm:"not null"`
	DisplayedInProfile bool   `gorm:"not null"`
}

func (InventoryModel) TableName() string {
	return "user_inventory"
}

// TokenModel 对应 nft_items 表，(base_gift_id, serial_number) 唯一。
type TokenModel struct {
	TokenID            string `gorm:"primaryKey;size:64"`
	BaseGiftID         string `gorm:"size:64;not null;uniqueIndex:idx_gift_serial,priority:1"`
	SerialNumber       int64  `gorm:"not null;uniqueIndex:idx_gift_serial,priority:2"`
	OwnerID            string `gorm:"size:64;not null;index"`
	CreatorAdminID     string `gorm:"size:64;not null"`
	OriginalSenderID   string `gorm:"size:64;not null"`
	BgVariant          int    `gorm:"not null"`
	Price              int64  `gorm:"not null"`
	IsListed           bool   `gorm:"not null;index"`
	DisplayedInProfile bool   `gorm:"not null"`
	CreatedAt          time.Time
}

func (TokenModel) TableName() string {
	return "nft_items"
}

// OutboxModel 对应 chat_outbox 表，保存待投递给消息服务的会话记录。
type OutboxModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	ChatID       string `gorm:"size:64;not null"`
	Participants string `gorm:"type:text;not null"` // JSON 数组
	SenderID     string `gorm:"size:64;not null"`
	Text         string `gorm:"size:512;not null"`
	GiftID       string `gorm:"size:64"`
	Deletable    bool   `gorm:"not null"`
	Delivered    bool   `gorm:"not null;index"`
	Attempts     int    `gorm:"not null"`
	LastError    string `gorm:"size:512"`
	CreatedAt    time.Time
}

func (OutboxModel) TableName() string {
	return "chat_outbox"
}

// Models 返回需要迁移的全部模型。
func Models() []interface{} {
	return []interface{}{&AccountModel{}, &GiftModel{}, &InventoryModel{}, &TokenModel{}, &OutboxModel{}}
}
