package infrastructure

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vault/internal/service/economy/domain"
)

const mysqlDuplicateEntry = 1062

// GormStore 基于 GORM 的工作单元实现，同时为 outbox 中继提供读写。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 创建或更新所有经济系统表
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	return errors.Wrap(s.db.WithContext(ctx).AutoMigrate(Models()...), "auto migrate")
}

// WithinTx 在一个数据库事务中执行 fn，成功提交后按注册顺序执行回调。
func (s *GormStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var hooks []func(context.Context)
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := &gormTx{db: db}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		hooks = tx.hooks
		return ctx.Err()
	})
	if err != nil {
		return err
	}
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range hooks {
		hook(hookCtx)
	}
	return nil
}

func (s *GormStore) Pending(ctx context.Context, limit int) ([]*domain.ChatRecord, error) {
	var models []*OutboxModel
	err := s.db.WithContext(ctx).
		Where("delivered = ?", false).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "repo: pending outbox")
	}
	records := make([]*domain.ChatRecord, 0, len(models))
	for _, m := range models {
		r, err := ToDomainChatRecord(m)
		if err != nil {
			return nil, errors.Wrapf(err, "repo: decode outbox record %s", m.ID)
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *GormStore) MarkDelivered(ctx context.Context, recordID string) error {
	err := s.db.WithContext(ctx).Model(&OutboxModel{}).Where("id = ?", recordID).Updates(map[string]interface{}{
		"delivered":  true,
		"attempts":   gorm.Expr("attempts + ?", 1),
		"last_error": "",
	}).Error
	return errors.Wrapf(err, "repo: mark delivered %s", recordID)
}

func (s *GormStore) MarkFailed(ctx context.Context, recordID, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	err := s.db.WithContext(ctx).Model(&OutboxModel{}).Where("id = ?", recordID).Updates(map[string]interface{}{
		"attempts":   gorm.Expr("attempts + ?", 1),
		"last_error": reason,
	}).Error
	return errors.Wrapf(err, "repo: mark failed %s", recordID)
}

type gormTx struct {
	db    *gorm.DB
	hooks []func(context.Context)
}

func (t *gormTx) Accounts() domain.AccountRepository { return gormAccounts{db: t.db} }
func (t *gormTx) Gifts() domain.GiftRepository { return gormGifts{db: t.db} }
func (t *gormTx) Inventory() domain.InventoryRepository { return gormInventory{db: t.db} }
func (t *gormTx) Tokens() domain.TokenRepository { return gormTokens{db: t.db} }
func (t *gormTx) Outbox() domain.OutboxRepository { return gormOutbox{db: t.db} }
func (t *gormTx) OnCommit(fn func(ctx context.Context)) { t.hooks = append(t.hooks, fn) }

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translate 把数据库错误映射为领域错误
func translate(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(domain.ErrNotFound, msg)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return errors.Wrap(domain.ErrConflict, msg)
	}
	return errors.Wrap(err, "repo: "+msg)
}

type gormAccounts struct{ db *gorm.DB }

func (r gormAccounts) Get(ctx context.Context, userID string) (*domain.Account, error) {
	return r.find(ctx, r.db, userID)
}

func (r gormAccounts) GetForUpdate(ctx context.Context, userID string) (*domain.Account, error) {
	return r.find(ctx, forUpdate(r.db), userID)
}

func (r gormAccounts) find(ctx context.Context, db *gorm.DB, userID string) (*domain.Account, error) {
	var m AccountModel
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, translate(err, "account %s", userID)
	}
	return ToDomainAccount(&m), nil
}

func (r gormAccounts) Create(ctx context.Context, a *domain.Account) error {
	return translate(r.db.WithContext(ctx).Create(FromDomainAccount(a)).Error, "create account %s", a.UserID)
}

func (r gormAccounts) Save(ctx context.Context, a *domain.Account) error {
	err := r.db.WithContext(ctx).Model(&AccountModel{}).Where("user_id = ?", a.UserID).Updates(map[string]interface{}{
		"coins": a.Balance,
		"role":  string(a.Role),
	}).Error
	return translate(err, "save account %s", a.UserID)
}

type gormGifts struct{ db *gorm.DB }

func (r gormGifts) Get(ctx context.Context, giftID string) (*domain.Gift, error) {
	return r.find(ctx, r.db, giftID)
}

func (r gormGifts) GetForUpdate(ctx context.Context, giftID string) (*domain.Gift, error) {
	return r.find(ctx, forUpdate(r.db), giftID)
}

func (r gormGifts) find(ctx context.Context, db *gorm.DB, giftID string) (*domain.Gift, error) {
	var m GiftModel
	if err := db.WithContext(ctx).Where("id = ?", giftID).First(&m).Error; err != nil {
		return nil, translate(err, "gift %s", giftID)
	}
	return ToDomainGift(&m), nil
}

func (r gormGifts) Create(ctx context.Context, g *domain.Gift) error {
	return translate(r.db.WithContext(ctx).Create(FromDomainGift(g)).Error, "create gift %s", g.ID)
}

func (r gormGifts) Save(ctx context.Context, g *domain.Gift) error {
	err := r.db.WithContext(ctx).Model(&GiftModel{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
		"name":         g.Name,
		"price":        g.Price,
		"image_url":    g.ImageRef,
		"is_rare":      g.Rare,
		"quantity":     g.Stock,
		"is_active":    g.Active,
		"upgradeable":  g.Upgradeable,
		"minted_count": g.MintedCount,
	}).Error
	return translate(err, "save gift %s", g.ID)
}

func (r gormGifts) ListActive(ctx context.Context) ([]*domain.Gift, error) {
	return r.list(ctx, r.db.Where("is_active = ? AND quantity <> ?", true, 0), "active gifts")
}

func (r gormGifts) ListByCreator(ctx context.Context, creatorID string) ([]*domain.Gift, error) {
	return r.list(ctx, r.db.Where("created_by = ?", creatorID), "gifts by "+creatorID)
}

func (r gormGifts) list(ctx context.Context, db *gorm.DB, what string) ([]*domain.Gift, error) {
	var models []*GiftModel
	if err := db.WithContext(ctx).Order("price ASC, id ASC").Find(&models).Error; err != nil {
		return nil, translate(err, "list %s", what)
	}
	gifts := make([]*domain.Gift, len(models))
	for i, m := range models {
		gifts[i] = ToDomainGift(m)
	}
	return gifts, nil
}

func (r gormGifts) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&GiftModel{}).Count(&n).Error; err != nil {
		return 0, translate(err, "count gifts")
	}
	return n, nil
}

type gormInventory struct{ db *gorm.DB }

func (r gormInventory) Get(ctx context.Context, userID, giftID string) (*domain.InventoryEntry, error) {
	return r.find(ctx, r.db, userID, giftID)
}

func (r gormInventory) GetForUpdate(ctx context.Context, userID, giftID string) (*domain.InventoryEntry, error) {
	return r.find(ctx, forUpdate(r.db), userID, giftID)
}

func (r gormInventory) find(ctx context.Context, db *gorm.DB, userID, giftID string) (*domain.InventoryEntry, error) {
	var m InventoryModel
	err := db.WithContext(ctx).Where("user_id = ? AND gift_id = ?", userID, giftID).First(&m).Error
	if err != nil {
		return nil, translate(err, "inventory %s/%s", userID, giftID)
	}
	return ToDomainInventory(&m), nil
}

// Increment 依赖 (user_id, gift_id) 主键做 upsert
func (r gormInventory) Increment(ctx context.Context, userID, giftID string, qty int64) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "gift_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("quantity + ?", qty)}),
	}).Create(&InventoryModel{UserID: userID, GiftID: giftID, Quantity: qty}).Error
	return translate(err, "increment inventory %s/%s", userID, giftID)
}

func (r gormInventory) Save(ctx context.Context, e *domain.InventoryEntry) error {
	err := r.db.WithContext(ctx).Model(&InventoryModel{}).
		Where("user_id = ? AND gift_id = ?", e.UserID, e.GiftID).
		Updates(map[string]interface{}{
			"quantity":             e.Quantity,
			"displayed_in_profile": e.Displayed,
		}).Error
	return translate(err, "save inventory %s/%s", e.UserID, e.GiftID)
}

func (r gormInventory) Delete(ctx context.Context, userID, giftID string) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND gift_id = ?", userID, giftID).Delete(&InventoryModel{}).Error
	return translate(err, "delete inventory %s/%s", userID, giftID)
}

type inventoryRow struct {
	UserID             string
	GiftID             string
	Quantity           int64
	DisplayedInProfile bool
	Name               string
	ImageURL           string
	IsRare             bool
	Price              int64
	Upgradeable        bool
}

func (r gormInventory) ListByUser(ctx context.Context, userID string) ([]*domain.InventoryItem, error) {
	var rows []inventoryRow
	err := r.db.WithContext(ctx).
		Table("user_inventory AS ui").
		Select("ui.user_id, ui.gift_id, ui.quantity, ui.displayed_in_profile, g.name, g.image_url, g.is_rare, g.price, g.upgradeable").
		Joins("JOIN gifts g ON g.id = ui.gift_id").
		Where("ui.user_id = ? AND ui.quantity > 0", userID).
		Order("g.price ASC, ui.gift_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "list inventory %s", userID)
	}
	items := make([]*domain.InventoryItem, len(rows))
	for i, row := range rows {
		items[i] = &domain.InventoryItem{
			InventoryEntry: domain.InventoryEntry{
				UserID:    row.UserID,
				GiftID:    row.GiftID,
				Quantity:  row.Quantity,
				Displayed: row.DisplayedInProfile,
			},
			Name:        row.Name,
			ImageRef:    row.ImageURL,
			Rare:        row.IsRare,
			Price:       row.Price,
			Upgradeable: row.Upgradeable,
		}
	}
	return items, nil
}

type gormTokens struct{ db *gorm.DB }

func (r gormTokens) Get(ctx context.Context, tokenID string) (*domain.Token, error) {
	return r.find(ctx, r.db, tokenID)
}

func (r gormTokens) GetForUpdate(ctx context.Context, tokenID string) (*domain.Token, error) {
	return r.find(ctx, forUpdate(r.db), tokenID)
}

func (r gormTokens) find(ctx context.Context, db *gorm.DB, tokenID string) (*domain.Token, error) {
	var m TokenModel
	if err := db.WithContext(ctx).Where("token_id = ?", tokenID).First(&m).Error; err != nil {
		return nil, translate(err, "token %s", tokenID)
	}
	return ToDomainToken(&m), nil
}

func (r gormTokens) Create(ctx context.Context, t *domain.Token) error {
	return translate(r.db.WithContext(ctx).Create(FromDomainToken(t)).Error, "create token %s", t.ID)
}

func (r gormTokens) Save(ctx context.Context, t *domain.Token) error {
	err := r.db.WithContext(ctx).Model(&TokenModel{}).Where("token_id = ?", t.ID).Updates(map[string]interface{}{
		"owner_id":             t.OwnerID,
		"price":                t.Price,
		"is_listed":            t.Listed,
		"displayed_in_profile": t.Displayed,
	}).Error
	return translate(err, "save token %s", t.ID)
}

func (r gormTokens) ListListed(ctx context.Context) ([]*domain.Token, error) {
	return r.list(ctx, r.db.Where("is_listed = ?", true).Order("created_at DESC, token_id DESC"), "listed tokens")
}

func (r gormTokens) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Token, error) {
	return r.list(ctx, r.db.Where("owner_id = ?", ownerID).Order("created_at DESC, token_id DESC"), "tokens of "+ownerID)
}

func (r gormTokens) ListByGift(ctx context.Context, giftID string) ([]*domain.Token, error) {
	return r.list(ctx, r.db.Where("base_gift_id = ?", giftID).Order("serial_number ASC"), "tokens of gift "+giftID)
}

func (r gormTokens) list(ctx context.Context, db *gorm.DB, what string) ([]*domain.Token, error) {
	var models []*TokenModel
	if err := db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, translate(err, "list %s", what)
	}
	tokens := make([]*domain.Token, len(models))
	for i, m := range models {
		tokens[i] = ToDomainToken(m)
	}
	return tokens, nil
}

type gormOutbox struct{ db *gorm.DB }

func (r gormOutbox) Append(ctx context.Context, record *domain.ChatRecord) error {
	m, err := FromDomainChatRecord(record)
	if err != nil {
		return errors.Wrapf(err, "repo: encode outbox record %s", record.ID)
	}
	return translate(r.db.WithContext(ctx).Create(m).Error, "append outbox record %s", record.ID)
}
