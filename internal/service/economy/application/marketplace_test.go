package application

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault/internal/service/economy/domain"
)

func TestBuyListedToken(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 0)
	f.user("user_me", domain.RoleUser, 20)
	f.gift(trophy)
	tok := f.listed("gift4", "bob", 15)

	res, err := f.market.Buy(context.Background(), me, tok.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.BuyerBalance)
	assert.Equal(t, "bob", res.SellerID)
	assert.Equal(t, int64(15), res.Price)
	assert.Equal(t, int64(5), f.balance("user_me"))
	assert.Equal(t, int64(15), f.balance("bob"))

	after := f.token(tok.ID)
	assert.Equal(t, "user_me", after.OwnerID)
	assert.False(t, after.Listed)
}

func TestBuyWithExactBalance(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 7)
	f.user("user_me", domain.RoleUser, 50)
	f.gift(crown)
	tok := f.listed("gift5", "bob", 50)

	_, err := f.market.Buy(context.Background(), me, tok.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(0), f.balance("user_me"))
	assert.Equal(t, int64(57), f.balance("bob"))
	after := f.token(tok.ID)
	assert.Equal(t, "user_me", after.OwnerID)
	assert.False(t, after.Listed)
}

func TestBuyFailuresLeaveStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 10)
	f.user("user_me", domain.RoleUser, 10)
	f.gift(trophy)
	listed := f.listed("gift4", "bob", 30)
	unlisted := f.mint("gift4", "bob", 5)

	_, err := f.market.Buy(context.Background(), me, listed.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.market.Buy(context.Background(), me, unlisted.ID)
	assert.ErrorIs(t, err, domain.ErrNotListed)

	_, err = f.market.Buy(context.Background(), bob, listed.ID)
	assert.ErrorIs(t, err, domain.ErrSelfTrade)

	_, err = f.market.Buy(context.Background(), me, "nft_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.market.Buy(context.Background(), me, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, int64(10), f.balance("bob"))
	assert.Equal(t, int64(10), f.balance("user_me"))
	after := f.token(listed.ID)
	assert.Equal(t, "bob", after.OwnerID)
	assert.True(t, after.Listed)
}

func TestBuyRejectsSellerBalanceOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user("bob", domain.RoleUser, 0)
	f.user("user_me", domain.RoleUser, 10)
	f.gift(trophy)
	tok := f.listed("gift4", "bob", 10)

	_, err := f.coord.SetBalance(ctx, admin, "bob", math.MaxInt64-5)
	require.NoError(t, err)

	_, err = f.market.Buy(ctx, me, tok.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, int64(math.MaxInt64-5), f.balance("bob"))
	assert.Equal(t, int64(10), f.balance("user_me"))
	after := f.token(tok.ID)
	assert.Equal(t, "bob", after.OwnerID)
	assert.True(t, after.Listed)
}

func TestToggleTokenDisplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user("bob", domain.RoleUser, 0)
	f.user("user_me", domain.RoleUser, 0)
	f.gift(trophy)
	tok := f.mint("gift4", "bob", 20)

	_, err := f.market.ToggleTokenDisplay(ctx, me, tok.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.False(t, f.token(tok.ID).Displayed)

	shown, err := f.market.ToggleTokenDisplay(ctx, bob, tok.ID)
	require.NoError(t, err)
	assert.True(t, shown.Displayed)

	_, err = f.market.ToggleTokenDisplay(ctx, me, tok.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.True(t, f.token(tok.ID).Displayed)
}

func TestListAndDelist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user("bob", domain.RoleUser, 0)
	f.gift(trophy)
	tok := f.mint("gift4", "bob", 20)

	listed, err := f.market.ListToken(ctx, bob, tok.ID, 35)
	require.NoError(t, err)
	assert.True(t, listed.Listed)

	delisted, err := f.market.DelistToken(ctx, bob, tok.ID)
	require.NoError(t, err)
	assert.False(t, delisted.Listed)
	assert.Equal(t, int64(35), delisted.Price, "last listed price is retained")

	again, err := f.market.DelistToken(ctx, bob, tok.ID)
	require.NoError(t, err)
	assert.False(t, again.Listed)
	assert.Equal(t, int64(35), again.Price)
	assert.Equal(t, "bob", again.OwnerID)

	_, err = f.market.ListToken(ctx, me, tok.ID, 10)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	_, err = f.market.DelistToken(ctx, me, tok.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.market.ListToken(ctx, bob, tok.ID, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMarketAndOwnedListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user("bob", domain.RoleUser, 0)
	f.gift(trophy)
	first := f.listed("gift4", "bob", 10)
	second := f.listed("gift4", "bob", 12)
	f.mint("gift4", "bob", 1)

	market, err := f.market.Market(ctx)
	require.NoError(t, err)
	require.Len(t, market, 2)
	assert.Equal(t, second.ID, market[0].ID)
	assert.Equal(t, first.ID, market[1].ID)

	owned, err := f.market.OwnedTokens(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, owned, 3)
}

func TestRegift(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 30)
	f.user("user_me", domain.RoleUser, 0)
	f.gift(trophy)
	tok := f.listed("gift4", "bob", 40)

	res, err := f.market.Regift(context.Background(), bob, tok.ID, "user_me")
	require.NoError(t, err)

	assert.Equal(t, int64(25), res.Fee)
	assert.Equal(t, int64(5), res.SenderBalance)
	assert.Equal(t, int64(5), f.balance("bob"))
	assert.Equal(t, int64(0), f.balance("user_me"), "fee is burned, not credited")

	after := f.token(tok.ID)
	assert.Equal(t, "user_me", after.OwnerID)
	assert.False(t, after.Listed)
}

func TestRegiftFailures(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 24)
	f.user("user_me", domain.RoleUser, 100)
	f.gift(trophy)
	tok := f.mint("gift4", "bob", 20)

	_, err := f.market.Regift(context.Background(), bob, tok.ID, "user_me")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.market.Regift(context.Background(), me, tok.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = f.market.Regift(context.Background(), bob, tok.ID, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.market.Regift(context.Background(), bob, tok.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, int64(24), f.balance("bob"))
	assert.Equal(t, "bob", f.token(tok.ID).OwnerID)
}

func TestUpgradeFromInventory(t *testing.T) {
	f := newFixture(t, withRandom(fixedRandom(2)))
	f.user("bob", domain.RoleUser, 9)
	f.gift(trophy)
	f.give("bob", "gift4", 2)

	res, err := f.coord.UpgradeFromInventory(context.Background(), bob, "gift4", 100)
	require.NoError(t, err)

	tok := res.Token
	assert.True(t, res.ConsumedGift)
	assert.Equal(t, int64(1), tok.Serial)
	assert.Equal(t, 3, tok.Background)
	assert.Equal(t, "bob", tok.OwnerID)
	assert.Equal(t, "bob", tok.CreatorID)
	assert.Equal(t, "bob", tok.OriginalSenderID)
	assert.Equal(t, int64(100), tok.Price)
	assert.False(t, tok.Listed)
	assert.Regexp(t, `^nft_[0-9a-f]{32}$`, tok.ID)

	assert.Equal(t, int64(1), f.quantity("bob", "gift4"))
	assert.Equal(t, int64(9), f.balance("bob"), "upgrading charges no coins")
	assert.Equal(t, int64(1), f.giftState("gift4").MintedCount)
}

func TestUpgradeFromInventoryFailures(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 0)
	f.gift(trophy)
	f.gift(heart)
	f.give("bob", "gift1", 1)

	_, err := f.coord.UpgradeFromInventory(context.Background(), bob, "gift1", 10)
	assert.ErrorIs(t, err, domain.ErrValidation, "gift is not upgradeable")

	_, err = f.coord.UpgradeFromInventory(context.Background(), bob, "gift4", 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	_, err = f.coord.UpgradeFromInventory(context.Background(), bob, "gift4", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.coord.UpgradeFromInventory(context.Background(), bob, "nope", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, int64(1), f.quantity("bob", "gift1"))
	assert.Empty(t, f.serials("gift4"))
	assert.Equal(t, int64(0), f.giftState("gift4").MintedCount)
}

func TestAdminUpgrade(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 0)
	f.gift(trophy)
	f.give("bob", "gift4", 1)

	res, err := f.coord.AdminUpgrade(context.Background(), admin, "bob", "gift4", 60)
	require.NoError(t, err)
	assert.True(t, res.ConsumedGift)
	assert.Equal(t, "bob", res.Token.OwnerID)
	assert.Equal(t, "admin", res.Token.CreatorID)
	assert.Equal(t, "admin", res.Token.OriginalSenderID)
	assert.Equal(t, int64(0), f.quantity("bob", "gift4"))

	// 用户已不再持有该礼物，管理员仍然可以铸造
	res, err = f.coord.AdminUpgrade(context.Background(), admin, "bob", "gift4", 60)
	require.NoError(t, err)
	assert.False(t, res.ConsumedGift)
	assert.Equal(t, int64(2), res.Token.Serial)
}

func TestAdminUpgradeRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 0)
	f.gift(trophy)

	_, err := f.coord.AdminUpgrade(context.Background(), bob, "bob", "gift4", 60)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.AdminUpgrade(context.Background(), admin, "ghost", "gift4", 60)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.coord.AdminUpgrade(context.Background(), admin, "bob", "gift4", -5)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.serials("gift4"))
}

func TestAdminTransfer(t *testing.T) {
	f := newFixture(t)
	f.user("bob", domain.RoleUser, 0)
	f.user("user_me", domain.RoleUser, 0)
	f.gift(trophy)
	tok := f.listed("gift4", "bob", 10)

	_, err := f.market.AdminTransfer(context.Background(), bob, tok.ID, "user_me")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	moved, err := f.market.AdminTransfer(context.Background(), admin, tok.ID, "user_me")
	require.NoError(t, err)
	assert.Equal(t, "user_me", moved.OwnerID)
	assert.False(t, moved.Listed)
}
