package application

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"vault/internal/service/economy/domain"
	"vault/internal/service/economy/domain/port"
	"vault/internal/service/economy/infrastructure"
	"vault/internal/service/economy/infrastructure/memory"
)

var (
	admin = domain.Actor{ID: "admin", Role: domain.RoleAdmin}
	bob   = domain.Actor{ID: "bob", Role: domain.RoleUser}
	me    = domain.Actor{ID: "user_me", Role: domain.RoleUser}
)

type fixture struct {
	t         *testing.T
	store     *memory.Store
	ledger    *CoinLedger
	catalog   *GiftCatalog
	inventory *InventoryStore
	registry  *NFTRegistry
	market    *MarketplaceEngine
	coord     *Coordinator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	cache  port.CatalogCache
	random domain.RandomSource
	payout port.PayoutPolicy
}

func withCache(c port.CatalogCache) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.cache = c }
}

func withRandom(r domain.RandomSource) fixtureOption {
	return func(cfg *fixtureConfig) { cfg.random = r }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{random: rand.New(rand.NewPCG(1, 2))}
	for _, o := range opts {
		o(&cfg)
	}

	tracer := otel.Tracer("economy-test")
	store := memory.NewStore()
	ledger := NewCoinLedger(15)
	catalog := NewGiftCatalog(cfg.cache)
	inventory := NewInventoryStore()
	registry := NewNFTRegistry(cfg.random)
	market := NewMarketplaceEngine(store, ledger, inventory, registry, infrastructure.NewLocalMintLocker(), DefaultRegiftFee, tracer)
	coord := NewCoordinator(store, ledger, catalog, inventory, registry, market, cfg.payout, tracer)

	return &fixture{
		t:         t,
		store:     store,
		ledger:    ledger,
		catalog:   catalog,
		inventory: inventory,
		registry:  registry,
		market:    market,
		coord:     coord,
	}
}

func (f *fixture) tx(fn func(ctx context.Context, tx domain.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.WithinTx(context.Background(), fn))
}

func (f *fixture) user(id string, role domain.Role, balance int64) {
	f.t.Helper()
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		if _, err := f.ledger.Open(ctx, tx, id, role); err != nil {
			return err
		}
		_, err := f.ledger.SetBalance(ctx, tx, id, balance)
		return err
	})
}

func (f *fixture) gift(spec domain.GiftSpec) *domain.Gift {
	f.t.Helper()
	var g *domain.Gift
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		var err error
		g, err = f.catalog.Create(ctx, tx, domain.SystemCreator, spec)
		return err
	})
	return g
}

func (f *fixture) give(userID, giftID string, qty int64) {
	f.t.Helper()
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		return f.inventory.Add(ctx, tx, userID, giftID, qty)
	})
}

func (f *fixture) mint(giftID, ownerID string, price int64) *domain.Token {
	f.t.Helper()
	var tok *domain.Token
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		var err error
		tok, err = f.registry.Mint(ctx, tx, domain.MintRequest{
			GiftID: giftID, OwnerID: ownerID, CreatorID: ownerID, OriginalSenderID: ownerID, Price: price,
		})
		return err
	})
	return tok
}

func (f *fixture) listed(giftID, ownerID string, price int64) *domain.Token {
	f.t.Helper()
	tok := f.mint(giftID, ownerID, price)
	tok, err := f.market.ListToken(context.Background(), domain.Actor{ID: ownerID, Role: domain.RoleUser}, tok.ID, price)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) balance(userID string) int64 {
	f.t.Helper()
	var b int64
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		var err error
		b, err = f.ledger.Balance(ctx, tx, userID)
		return err
	})
	return b
}

func (f *fixture) quantity(userID, giftID string) int64 {
	f.t.Helper()
	var q int64
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		var err error
		q, err = f.inventory.Quantity(ctx, tx, userID, giftID)
		return err
	})
	return q
}

func (f *fixture) giftState(giftID string) *domain.Gift {
	f.t.Helper()
	var g *domain.Gift
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		var err error
		g, err = tx.Gifts().Get(ctx, giftID)
		return err
	})
	return g
}

func (f *fixture) token(tokenID string) *domain.Token {
	f.t.Helper()
	tok, err := f.market.Token(context.Background(), tokenID)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) serials(giftID string) []int64 {
	f.t.Helper()
	var out []int64
	f.tx(func(ctx context.Context, tx domain.Tx) error {
		tokens, err := f.registry.ListByGift(ctx, tx, giftID)
		for _, t := range tokens {
			out = append(out, t.Serial)
		}
		return err
	})
	return out
}

func limited(n int64) *int64 { return &n }

var (
	heart  = domain.GiftSpec{ID: "gift1", Name: "Сердце", Price: 5, ImageRef: "❤️"}
	star   = domain.GiftSpec{ID: "gift2", Name: "Звезда", Price: 10, ImageRef: "⭐"}
	trophy = domain.GiftSpec{ID: "gift4", Name: "Кубок", Price: 20, ImageRef: "🏆", Rare: true, Upgradeable: true}
	crown  = domain.GiftSpec{ID: "gift5", Name: "Корона", Price: 25, ImageRef: "👑", Rare: true, Upgradeable: true}
)

// fixedRandom 总是返回同一个值，用于断言背景样式。
type fixedRandom int

func (r fixedRandom) IntN(n int) int { return int(r) % n }
