package domain

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountDebitCredit(t *testing.T) {
	acc := &Account{UserID: "bob", Balance: 20}

	require.NoError(t, acc.Debit(15))
	assert.Equal(t, int64(5), acc.Balance)

	err := acc.Debit(6)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(5), acc.Balance)

	assert.ErrorIs(t, acc.Credit(0), ErrValidation)
	assert.ErrorIs(t, acc.Debit(-1), ErrValidation)
	require.NoError(t, acc.Credit(10))
	assert.Equal(t, int64(15), acc.Balance)
}

func TestAccountCreditOverflow(t *testing.T) {
	acc := &Account{UserID: "bob", Balance: math.MaxInt64 - 5}

	err := acc.Credit(10)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(math.MaxInt64-5), acc.Balance)

	require.NoError(t, acc.Credit(5))
	assert.Equal(t, int64(math.MaxInt64), acc.Balance)
	assert.ErrorIs(t, acc.Credit(1), ErrValidation)
}

func TestGiftStock(t *testing.T) {
	unlimited := &Gift{ID: "g1", Stock: UnlimitedStock, Active: true}
	require.NoError(t, unlimited.DecrementStock())
	assert.Equal(t, UnlimitedStock, unlimited.Stock)
	assert.True(t, unlimited.Purchasable())

	limited := &Gift{ID: "g2", Stock: 1, Active: true}
	require.NoError(t, limited.DecrementStock())
	assert.Equal(t, int64(0), limited.Stock)
	assert.False(t, limited.Purchasable())
	assert.ErrorIs(t, limited.DecrementStock(), ErrSoldOut)
	assert.Equal(t, int64(0), limited.Stock)
}

func TestGiftSerials(t *testing.T) {
	g := &Gift{ID: "g"}
	assert.Equal(t, int64(1), g.NextSerial())
	assert.Equal(t, int64(2), g.NextSerial())
}

func TestGiftSpecValidate(t *testing.T) {
	five := int64(5)
	bad := int64(-2)
	cases := []struct {
		name string
		spec GiftSpec
		ok   bool
	}{
		{"valid", GiftSpec{Name: "Rocket", Price: 30, ImageRef: "🚀"}, true},
		{"limited", GiftSpec{Name: "Rocket", Price: 30, ImageRef: "🚀", Stock: &five}, true},
		{"zero price", GiftSpec{Name: "Rocket", Price: 0, ImageRef: "🚀"}, false},
		{"no image", GiftSpec{Name: "Rocket", Price: 30}, false},
		{"no name", GiftSpec{Price: 30, ImageRef: "🚀"}, false},
		{"bad stock", GiftSpec{Name: "Rocket", Price: 30, ImageRef: "🚀", Stock: &bad}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestNewGiftDefaults(t *testing.T) {
	g := NewGift("gift_x", "admin", GiftSpec{Name: " Cake ", Price: 7, ImageRef: "🎂"}, fixedTime)
	assert.Equal(t, UnlimitedStock, g.Stock)
	assert.True(t, g.Active)
	assert.False(t, g.Upgradeable)
	assert.False(t, g.Rare)
	assert.Equal(t, "Cake", g.Name)
	assert.Equal(t, "admin", g.CreatedBy)
}

func TestTokenListingStateMachine(t *testing.T) {
	tok := &Token{ID: "nft_1", OwnerID: "alice", Price: 10}

	assert.ErrorIs(t, tok.List("bob", 5), ErrNotOwner)
	assert.ErrorIs(t, tok.List("bob", 5), ErrForbidden)
	assert.ErrorIs(t, tok.List("alice", 0), ErrValidation)

	require.NoError(t, tok.List("alice", 40))
	assert.True(t, tok.Listed)

	require.NoError(t, tok.Delist("alice"))
	assert.False(t, tok.Listed)
	assert.Equal(t, int64(40), tok.Price)

	require.NoError(t, tok.Delist("alice"))
	assert.False(t, tok.Listed)
	assert.Equal(t, int64(40), tok.Price)

	require.NoError(t, tok.List("alice", 50))
	tok.Displayed = true
	tok.TransferTo("carol")
	assert.Equal(t, "carol", tok.OwnerID)
	assert.False(t, tok.Listed)
	assert.False(t, tok.Displayed)
}

func TestActorRequireAdmin(t *testing.T) {
	assert.NoError(t, Actor{ID: "admin", Role: RoleAdmin}.RequireAdmin())
	assert.ErrorIs(t, Actor{ID: "bob", Role: RoleUser}.RequireAdmin(), ErrForbidden)
	assert.ErrorIs(t, Actor{Role: RoleAdmin}.RequireAdmin(), ErrValidation)
	assert.ErrorIs(t, Actor{ID: "x", Role: "root"}.Validate(), ErrValidation)
}

func TestChatIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ChatID("bob", "user_me"), ChatID("user_me", "bob"))
	assert.NotEqual(t, ChatID("bob", "user_me"), ChatID("bob", "admin"))
	// md5(`["bob", "user_me"]`)
	assert.Len(t, ChatID("bob", "user_me"), 32)
}

func TestNewGiftRecord(t *testing.T) {
	g := &Gift{ID: "gift3", Name: "Подарок-сюрприз"}
	rec := NewGiftRecord("r1", "bob", "user_me", g, fixedTime)
	assert.Equal(t, "Подарок: Подарок-сюрприз", rec.Text)
	assert.Equal(t, "gift3", rec.GiftID)
	assert.False(t, rec.Deletable)
	assert.Equal(t, []string{"bob", "user_me"}, rec.Participants)
	assert.Equal(t, ChatID("bob", "user_me"), rec.ChatID)
}

func TestDefaultUnitPayout(t *testing.T) {
	assert.Equal(t, int64(16), DefaultUnitPayout(20, true))
	assert.Equal(t, int64(10), DefaultUnitPayout(20, false))
	assert.Equal(t, int64(2), DefaultUnitPayout(5, false))
	assert.Equal(t, int64(4), DefaultUnitPayout(5, true))
	assert.Equal(t, int64(0), DefaultUnitPayout(1, false))
}

func TestSyncRandomConcurrentUse(t *testing.T) {
	src := SyncRandom(rand.New(rand.NewPCG(7, 8)))
	assert.Same(t, src, SyncRandom(src))
	assert.Equal(t, DefaultRandom(), SyncRandom(DefaultRandom()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				v := src.IntN(BackgroundVariants)
				assert.GreaterOrEqual(t, v, 0)
				assert.Less(t, v, BackgroundVariants)
			}
		}()
	}
	wg.Wait()
}
