package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault/internal/service/economy/domain"
)

type fakeCache struct {
	mu          sync.Mutex
	gifts       []*domain.Gift
	ok          bool
	sets        int
	invalidated int
}

func (c *fakeCache) GetActive(context.Context) ([]*domain.Gift, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gifts, c.ok, nil
}

func (c *fakeCache) SetActive(_ context.Context, gifts []*domain.Gift) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gifts, c.ok = gifts, true
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gifts, c.ok = nil, false
	c.invalidated++
	return nil
}

// deferredTx 收集提交回调，由测试决定各事务的提交顺序。
type deferredTx struct {
	domain.Tx
	hooks []func(ctx context.Context)
}

func (t *deferredTx) OnCommit(fn func(ctx context.Context)) { t.hooks = append(t.hooks, fn) }

func (t *deferredTx) commit(ctx context.Context) {
	for _, h := range t.hooks {
		h(ctx)
	}
}

func TestActiveGiftsOrderedAndFiltered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gift(trophy)
	f.gift(star)
	f.gift(heart)
	f.gift(domain.GiftSpec{ID: "gone", Name: "Gone", Price: 3, ImageRef: "x", Stock: limited(0)})
	_, err := f.coord.DeactivateGift(ctx, admin, "gift2")
	require.NoError(t, err)

	gifts, err := f.coord.ActiveGifts(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(gifts))
	for _, g := range gifts {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"gift1", "gift4"}, ids)
}

func TestCreateGift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.coord.CreateGift(ctx, admin, domain.GiftSpec{Name: "Торт", Price: 12, ImageRef: "🎂"})
	require.NoError(t, err)
	assert.Regexp(t, `^gift_[0-9a-f]{16}$`, g.ID)
	assert.Equal(t, "admin", g.CreatedBy)
	assert.Equal(t, domain.UnlimitedStock, g.Stock)
	assert.False(t, g.Upgradeable)
	assert.True(t, g.Active)

	_, err = f.coord.CreateGift(ctx, bob, domain.GiftSpec{Name: "Торт", Price: 12, ImageRef: "🎂"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.CreateGift(ctx, admin, domain.GiftSpec{Name: "Торт", Price: 0, ImageRef: "🎂"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.coord.CreateGift(ctx, admin, domain.GiftSpec{Name: "Торт", Price: 3})
	assert.ErrorIs(t, err, domain.ErrValidation)

	mine, err := f.coord.CreatedGifts(ctx, admin)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, g.ID, mine[0].ID)
}

func TestGiftAdminToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gift(heart)

	g, err := f.coord.SetGiftUpgradeable(ctx, admin, "gift1", true)
	require.NoError(t, err)
	assert.True(t, g.Upgradeable)

	_, err = f.coord.SetGiftUpgradeable(ctx, bob, "gift1", false)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.coord.DeactivateGift(ctx, admin, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	g, err = f.coord.DeactivateGift(ctx, admin, "gift1")
	require.NoError(t, err)
	assert.False(t, g.Active)
	assert.True(t, f.giftState("gift1").Upgradeable)
}

func TestDeactivateGiftKeepsHoldings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user("bob", domain.RoleUser, 0)
	f.gift(trophy)
	f.give("bob", "gift4", 2)
	tok := f.mint("gift4", "bob", 30)

	_, err := f.coord.DeactivateGift(ctx, admin, "gift4")
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.quantity("bob", "gift4"))
	after := f.token(tok.ID)
	assert.Equal(t, "bob", after.OwnerID)
	assert.Equal(t, "gift4", after.GiftID)
	assert.Equal(t, int64(1), after.Serial)

	items, err := f.coord.Inventory(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].Quantity)
}

func TestSeedCatalogOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.coord.SeedCatalog(ctx, []domain.GiftSpec{heart, star, trophy})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.coord.SeedCatalog(ctx, []domain.GiftSpec{crown})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, domain.SystemCreator, f.giftState("gift4").CreatedBy)
	assert.True(t, f.giftState("gift4").Rare)
}

func TestActiveGiftsCacheInvalidatedOnCommit(t *testing.T) {
	cache := &fakeCache{}
	f := newFixture(t, withCache(cache))
	ctx := context.Background()
	f.user("bob", domain.RoleUser, 100)
	f.user("user_me", domain.RoleUser, 0)
	f.gift(heart)
	f.gift(domain.GiftSpec{ID: "ltd", Name: "Limited", Price: 10, ImageRef: "🎟", Stock: limited(1)})

	gifts, err := f.coord.ActiveGifts(ctx)
	require.NoError(t, err)
	assert.Len(t, gifts, 2)
	assert.Equal(t, 1, cache.sets)

	_, err = f.coord.ActiveGifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read served from cache")

	before := cache.invalidated
	_, err = f.coord.SendGift(ctx, bob, "user_me", "heart-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before, cache.invalidated, "failed operations do not invalidate")

	_, err = f.coord.SendGift(ctx, bob, "user_me", "ltd")
	require.NoError(t, err)
	assert.Equal(t, before+1, cache.invalidated)

	gifts, err = f.coord.ActiveGifts(ctx)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.Equal(t, "gift1", gifts[0].ID)
}

func TestActiveGiftsStaleFillDropped(t *testing.T) {
	cache := &fakeCache{}
	f := newFixture(t, withCache(cache))
	ctx := context.Background()
	f.gift(heart)
	f.gift(star)

	f.tx(func(ctx context.Context, tx domain.Tx) error {
		reader := &deferredTx{Tx: tx}
		gifts, err := f.catalog.ListActive(ctx, reader)
		require.NoError(t, err)
		assert.Len(t, gifts, 2)

		writer := &deferredTx{Tx: tx}
		_, err = f.catalog.Deactivate(ctx, writer, "gift2")
		require.NoError(t, err)

		writer.commit(ctx)
		reader.commit(ctx)
		return nil
	})
	assert.Equal(t, 0, cache.sets, "list read before the invalidation is not cached")
	assert.False(t, cache.ok)

	gifts, err := f.coord.ActiveGifts(ctx)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.Equal(t, "gift1", gifts[0].ID)
	assert.Equal(t, 1, cache.sets)
}

func TestInventoryStoreRemove(t *testing.T) {
	f := newFixture(t)
	f.gift(heart)
	f.give("bob", "gift1", 3)

	f.tx(func(ctx context.Context, tx domain.Tx) error {
		left, err := f.inventory.Remove(ctx, tx, "bob", "gift1", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), left)

		_, err = f.inventory.Remove(ctx, tx, "bob", "gift1", 2)
		assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)

		left, err = f.inventory.Remove(ctx, tx, "bob", "gift1", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), left)

		_, err = tx.Inventory().Get(ctx, "bob", "gift1")
		assert.ErrorIs(t, err, domain.ErrNotFound, "row is deleted at zero")

		assert.ErrorIs(t, f.inventory.Add(ctx, tx, "bob", "gift1", 0), domain.ErrValidation)
		return nil
	})
}

func TestLedgerPrimitives(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 10)

	f.tx(func(ctx context.Context, tx domain.Tx) error {
		_, err := f.ledger.Debit(ctx, tx, "bob", 11)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

		_, err = f.ledger.Credit(ctx, tx, "bob", 0)
		assert.ErrorIs(t, err, domain.ErrValidation)

		acc, err := f.ledger.Debit(ctx, tx, "bob", 10)
		require.NoError(t, err)
		assert.Equal(t, int64(0), acc.Balance)

		acc, err = f.ledger.Credit(ctx, tx, "bob", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(4), acc.Balance)

		locked, err := f.ledger.Lock(ctx, tx, "bob", "bob")
		require.NoError(t, err)
		assert.Len(t, locked, 1)

		_, err = f.ledger.Lock(ctx, tx, "bob", "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	})
}
