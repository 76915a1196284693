package domain

import "context"

// AccountRepository 管理用户金币账户。
type AccountRepository interface {
	Get(ctx context.Context, userID string) (*Account, error)
	// GetForUpdate 在当前事务内锁定账户行。
	GetForUpdate(ctx context.Context, userID string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Save(ctx context.Context, account *Account) error
}

// GiftRepository 管理礼物目录。
type GiftRepository interface {
	Get(ctx context.Context, giftID string) (*Gift, error)
	GetForUpdate(ctx context.Context, giftID string) (*Gift, error)
	Create(ctx context.Context, gift *Gift) error
	Save(ctx context.Context, gift *Gift) error
	// ListActive 返回上架且未售罄的礼物，按价格升序。
	ListActive(ctx context.Context) ([]*Gift, error)
	// ListByCreator 返回某个创建者的全部礼物，按价格升序。
	ListByCreator(ctx context.Context, creatorID string) ([]*Gift, error)
	Count(ctx context.Context) (int64, error)
}

// InventoryRepository 管理用户的礼物持有记录。
type InventoryRepository interface {
	Get(ctx context.Context, userID, giftID string) (*InventoryEntry, error)
	GetForUpdate(ctx context.Context, userID, giftID string) (*InventoryEntry, error)
	// Increment 不存在时插入，存在时累加数量。
	Increment(ctx context.Context, userID, giftID string, qty int64) error
	Save(ctx context.Context, entry *InventoryEntry) error
	Delete(ctx context.Context, userID, giftID string) error
	// ListByUser 返回数量大于 0 的记录及礼物信息。
	ListByUser(ctx context.Context, userID string) ([]*InventoryItem, error)
}

// TokenRepository 管理 NFT 藏品。
type TokenRepository interface {
	Get(ctx context.Context, tokenID string) (*Token, error)
	GetForUpdate(ctx context.Context, tokenID string) (*Token, error)
	Create(ctx context.Context, token *Token) error
	Save(ctx context.Context, token *Token) error
	// ListListed 返回市场上的挂单，新铸造的在前。
	ListListed(ctx context.Context) ([]*Token, error)
	// ListByOwner 返回某个用户持有的藏品，新铸造的在前。
	ListByOwner(ctx context.Context, ownerID string) ([]*Token, error)
	// ListByGift 返回某个礼物铸造出的全部藏品，按序列号升序。
	ListByGift(ctx context.Context, giftID string) ([]*Token, error)
}

// OutboxRepository 在事务内登记待投递的会话记录。
type OutboxRepository interface {
	Append(ctx context.Context, record *ChatRecord) error
}

// OutboxStore 供中继在事务之外读取和确认 outbox。
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]*ChatRecord, error)
	MarkDelivered(ctx context.Context, recordID string) error
	MarkFailed(ctx context.Context, recordID, reason string) error
}

// Tx 是一次工作单元内可见的全部仓储。
type Tx interface {
	Accounts() AccountRepository
	Gifts() GiftRepository
	Inventory() InventoryRepository
	Tokens() TokenRepository
	Outbox() OutboxRepository
	// OnCommit 注册提交成功后执行的回调，回滚时丢弃。
	OnCommit(fn func(ctx context.Context))
}

// TxManager 保证 fn 内的所有修改要么全部提交，要么全部回滚。
// fn 返回错误或 ctx 在提交前被取消时回滚。
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
