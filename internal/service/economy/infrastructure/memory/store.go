// Package memory 提供单写者模型的内存存储，用于本地运行和测试。
// 整个工作单元持有同一把互斥锁，失败时按撤销日志逆序回放。
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"vault/internal/service/economy/domain"
)

type inventoryKey struct {
	userID string
	giftID string
}

// Store 实现 domain.TxManager 和 domain.OutboxStore。
type Store struct {
	mu sync.Mutex

	accounts  map[string]domain.Account
	gifts     map[string]domain.Gift
	inventory map[inventoryKey]domain.InventoryEntry
	tokens    map[string]domain.Token
	tokenSeq  map[string]int64
	outbox    map[string]domain.ChatRecord
	outboxSeq map[string]int64
	seq       int64
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]domain.Account),
		gifts:     make(map[string]domain.Gift),
		inventory: make(map[inventoryKey]domain.InventoryEntry),
		tokens:    make(map[string]domain.Token),
		tokenSeq:  make(map[string]int64),
		outbox:    make(map[string]domain.ChatRecord),
		outboxSeq: make(map[string]int64),
	}
}

// WithinTx 串行执行工作单元。fn 出错、panic 或 ctx 在提交前被取消都会回滚。
// 提交后的回调在释放锁之后执行，使用不会被取消的 ctx。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.run(ctx, fn)
	if err != nil {
		return err
	}
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range tx.hooks {
		hook(hookCtx)
	}
	return nil
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (*storeTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{store: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	err := fn(ctx, tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return nil, err
	}
	return tx, nil
}

// Pending 按写入顺序返回未投递的记录。
func (s *Store) Pending(_ context.Context, limit int) ([]*domain.ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.outbox))
	for id, rec := range s.outbox {
		if !rec.Delivered {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int { return cmp.Compare(s.outboxSeq[a], s.outboxSeq[b]) })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*domain.ChatRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneRecord(s.outbox[id]))
	}
	return out, nil
}

func (s *Store) MarkDelivered(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.outbox[recordID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "outbox record %s", recordID)
	}
	rec.Delivered = true
	rec.Attempts++
	rec.LastError = ""
	s.outbox[recordID] = rec
	return nil
}

func (s *Store) MarkFailed(_ context.Context, recordID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.outbox[recordID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "outbox record %s", recordID)
	}
	rec.Attempts++
	rec.LastError = reason
	s.outbox[recordID] = rec
	return nil
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func cloneRecord(rec domain.ChatRecord) *domain.ChatRecord {
	rec.Participants = slices.Clone(rec.Participants)
	return &rec
}

type storeTx struct {
	store *Store
	undo  []func()
	hooks []func(ctx context.Context)
}

func (t *storeTx) Accounts() domain.AccountRepository { return accountRepo{t} }
func (t *storeTx) Gifts() domain.GiftRepository { return giftRepo{t} }
func (t *storeTx) Inventory() domain.InventoryRepository { return inventoryRepo{t} }
func (t *storeTx) Tokens() domain.TokenRepository { return tokenRepo{t} }
func (t *storeTx) Outbox() domain.OutboxRepository { return outboxRepo{t} }
func (t *storeTx) OnCommit(fn func(ctx context.Context)) { t.hooks = append(t.hooks, fn) }

func (t *storeTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.hooks = nil
}

// track 在修改 m[k] 之前记录其原值。
func track[K comparable, V any](t *storeTx, m map[K]V, k K) {
	prev, existed := m[k]
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

type accountRepo struct{ tx *storeTx }

func (r accountRepo) Get(_ context.Context, userID string) (*domain.Account, error) {
	a, ok := r.tx.store.accounts[userID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "user %s", userID)
	}
	return &a, nil
}

func (r accountRepo) GetForUpdate(ctx context.Context, userID string) (*domain.Account, error) {
	return r.Get(ctx, userID)
}

func (r accountRepo) Create(_ context.Context, account *domain.Account) error {
	m := r.tx.store.accounts
	if _, ok := m[account.UserID]; ok {
		return errors.Wrapf(domain.ErrConflict, "user %s already exists", account.UserID)
	}
	track(r.tx, m, account.UserID)
	m[account.UserID] = *account
	return nil
}

func (r accountRepo) Save(_ context.Context, account *domain.Account) error {
	m := r.tx.store.accounts
	if _, ok := m[account.UserID]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "user %s", account.UserID)
	}
	track(r.tx, m, account.UserID)
	m[account.UserID] = *account
	return nil
}

type giftRepo struct{ tx *storeTx }

func (r giftRepo) Get(_ context.Context, giftID string) (*domain.Gift, error) {
	g, ok := r.tx.store.gifts[giftID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "gift %s", giftID)
	}
	return &g, nil
}

func (r giftRepo) GetForUpdate(ctx context.Context, giftID string) (*domain.Gift, error) {
	return r.Get(ctx, giftID)
}

func (r giftRepo) Create(_ context.Context, gift *domain.Gift) error {
	m := r.tx.store.gifts
	if _, ok := m[gift.ID]; ok {
		return errors.Wrapf(domain.ErrConflict, "gift %s already exists", gift.ID)
	}
	track(r.tx, m, gift.ID)
	m[gift.ID] = *gift
	return nil
}

func (r giftRepo) Save(_ context.Context, gift *domain.Gift) error {
	m := r.tx.store.gifts
	if _, ok := m[gift.ID]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "gift %s", gift.ID)
	}
	track(r.tx, m, gift.ID)
	m[gift.ID] = *gift
	return nil
}

func (r giftRepo) ListActive(_ context.Context) ([]*domain.Gift, error) {
	return r.filter(func(g domain.Gift) bool { return g.Purchasable() }), nil
}

func (r giftRepo) ListByCreator(_ context.Context, creatorID string) ([]*domain.Gift, error) {
	return r.filter(func(g domain.Gift) bool { return g.CreatedBy == creatorID }), nil
}

func (r giftRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.tx.store.gifts)), nil
}

func (r giftRepo) filter(keep func(domain.Gift) bool) []*domain.Gift {
	out := make([]*domain.Gift, 0)
	for _, g := range r.tx.store.gifts {
		if keep(g) {
			g := g
			out = append(out, &g)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Gift) int {
		if c := cmp.Compare(a.Price, b.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

type inventoryRepo struct{ tx *storeTx }

func (r inventoryRepo) Get(_ context.Context, userID, giftID string) (*domain.InventoryEntry, error) {
	e, ok := r.tx.store.inventory[inventoryKey{userID, giftID}]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "inventory %s/%s", userID, giftID)
	}
	return &e, nil
}

func (r inventoryRepo) GetForUpdate(ctx context.Context, userID, giftID string) (*domain.InventoryEntry, error) {
	return r.Get(ctx, userID, giftID)
}

func (r inventoryRepo) Increment(_ context.Context, userID, giftID string, qty int64) error {
	m := r.tx.store.inventory
	key := inventoryKey{userID, giftID}
	track(r.tx, m, key)
	e, ok := m[key]
	if !ok {
		e = domain.InventoryEntry{UserID: userID, GiftID: giftID}
	}
	e.Quantity += qty
	m[key] = e
	return nil
}

func (r inventoryRepo) Save(_ context.Context, entry *domain.InventoryEntry) error {
	m := r.tx.store.inventory
	key := inventoryKey{entry.UserID, entry.GiftID}
	if _, ok := m[key]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "inventory %s/%s", entry.UserID, entry.GiftID)
	}
	track(r.tx, m, key)
	m[key] = *entry
	return nil
}

func (r inventoryRepo) Delete(_ context.Context, userID, giftID string) error {
	m := r.tx.store.inventory
	key := inventoryKey{userID, giftID}
	if _, ok := m[key]; !ok {
		return nil
	}
	track(r.tx, m, key)
	delete(m, key)
	return nil
}

func (r inventoryRepo) ListByUser(_ context.Context, userID string) ([]*domain.InventoryItem, error) {
	out := make([]*domain.InventoryItem, 0)
	for key, e := range r.tx.store.inventory {
		if key.userID != userID || e.Quantity <= 0 {
			continue
		}
		g, ok := r.tx.store.gifts[key.giftID]
		if !ok {
			continue
		}
		out = append(out, &domain.InventoryItem{
			InventoryEntry: e,
			Name:           g.Name,
			ImageRef:       g.ImageRef,
			Rare:           g.Rare,
			Price:          g.Price,
			Upgradeable:    g.Upgradeable,
		})
	}
	slices.SortFunc(out, func(a, b *domain.InventoryItem) int {
		if c := cmp.Compare(a.Price, b.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.GiftID, b.GiftID)
	})
	return out, nil
}

type tokenRepo struct{ tx *storeTx }

func (r tokenRepo) Get(_ context.Context, tokenID string) (*domain.Token, error) {
	t, ok := r.tx.store.tokens[tokenID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "token %s", tokenID)
	}
	return &t, nil
}

func (r tokenRepo) GetForUpdate(ctx context.Context, tokenID string) (*domain.Token, error) {
	return r.Get(ctx, tokenID)
}

// Create 与数据库的唯一索引保持一致：藏品 ID 唯一，(礼物, 序列号) 唯一。
func (r tokenRepo) Create(_ context.Context, token *domain.Token) error {
	s := r.tx.store
	if _, ok := s.tokens[token.ID]; ok {
		return errors.Wrapf(domain.ErrConflict, "token %s already exists", token.ID)
	}
	for _, t := range s.tokens {
		if t.GiftID == token.GiftID && t.Serial == token.Serial {
			return errors.Wrapf(domain.ErrConflict, "serial %d of gift %s already minted", token.Serial, token.GiftID)
		}
	}
	track(r.tx, s.tokens, token.ID)
	track(r.tx, s.tokenSeq, token.ID)
	s.tokens[token.ID] = *token
	s.tokenSeq[token.ID] = s.nextSeq()
	return nil
}

func (r tokenRepo) Save(_ context.Context, token *domain.Token) error {
	m := r.tx.store.tokens
	if _, ok := m[token.ID]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "token %s", token.ID)
	}
	track(r.tx, m, token.ID)
	m[token.ID] = *token
	return nil
}

func (r tokenRepo) ListListed(_ context.Context) ([]*domain.Token, error) {
	return r.newestFirst(func(t domain.Token) bool { return t.Listed }), nil
}

func (r tokenRepo) ListByOwner(_ context.Context, ownerID string) ([]*domain.Token, error) {
	return r.newestFirst(func(t domain.Token) bool { return t.OwnerID == ownerID }), nil
}

func (r tokenRepo) ListByGift(_ context.Context, giftID string) ([]*domain.Token, error) {
	out := r.collect(func(t domain.Token) bool { return t.GiftID == giftID })
	slices.SortFunc(out, func(a, b *domain.Token) int { return cmp.Compare(a.Serial, b.Serial) })
	return out, nil
}

func (r tokenRepo) collect(keep func(domain.Token) bool) []*domain.Token {
	out := make([]*domain.Token, 0)
	for _, t := range r.tx.store.tokens {
		if keep(t) {
			t := t
			out = append(out, &t)
		}
	}
	return out
}

func (r tokenRepo) newestFirst(keep func(domain.Token) bool) []*domain.Token {
	seq := r.tx.store.tokenSeq
	out := r.collect(keep)
	slices.SortFunc(out, func(a, b *domain.Token) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(seq[b.ID], seq[a.ID])
	})
	return out
}

type outboxRepo struct{ tx *storeTx }

func (r outboxRepo) Append(_ context.Context, record *domain.ChatRecord) error {
	s := r.tx.store
	if _, ok := s.outbox[record.ID]; ok {
		return errors.Wrapf(domain.ErrConflict, "outbox record %s already exists", record.ID)
	}
	track(r.tx, s.outbox, record.ID)
	track(r.tx, s.outboxSeq, record.ID)
	s.outbox[record.ID] = *cloneRecord(*record)
	s.outboxSeq[record.ID] = s.nextSeq()
	return nil
}
