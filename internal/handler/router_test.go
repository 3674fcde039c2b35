package handler

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finalway1606/kranikbot-api/internal/catalog"
	"github.com/Finalway1606/kranikbot-api/internal/chat"
	"github.com/Finalway1606/kranikbot-api/internal/pkg/lock"
	"github.com/Finalway1606/kranikbot-api/internal/publisher"
	"github.com/Finalway1606/kranikbot-api/internal/service"
	"github.com/Finalway1606/kranikbot-api/internal/store/sqlitestore"
)

// fakeSpeaker records outgoing chat lines.
type fakeSpeaker struct {
	lines []string
}

func (s *fakeSpeaker) Say(text string) error {
	s.lines = append(s.lines, text)
	return nil
}

func (s *fakeSpeaker) last() string {
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

type fixture struct {
	router  *Router
	speaker *fakeSpeaker
	ledger  *service.LedgerService
	shop    *service.ShopService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlitestore.MigrateLedger(db))
	require.NoError(t, sqlitestore.MigrateShop(db))

	guard := lock.New(5 * time.Second)
	ledger := service.NewLedgerService(
		sqlitestore.NewAccountStore(db), sqlitestore.NewGameStore(db), guard, nil)
	shop := service.NewShopService(
		sqlitestore.NewAccountStore(db), sqlitestore.NewPurchaseStore(db), guard, nil)

	speaker := &fakeSpeaker{}
	pub := publisher.New(&nopSink{})
	router := NewRouter(ledger, shop, pub, speaker, Config{
		Owner:           "kranik",
		Excluded:        []string{"nightbot", "streamelements"},
		LeaderboardSize: 5,
	})
	return &fixture{router: router, speaker: speaker, ledger: ledger, shop: shop}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, publisher.View, string) error { return nil }

func viewer(identity, text string) chat.Message {
	return chat.Message{Identity: identity, DisplayName: identity, Text: text, Eligible: true}
}

func moderator(identity, text string) chat.Message {
	m := viewer(identity, text)
	m.IsModerator = true
	return m
}

func TestPlainMessageAccruesActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("alice", "hello chat"))

	account, err := f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(service.FirstMessageBonus), account.Balance)
	assert.Equal(t, int64(1), account.MessageCount)
	assert.Empty(t, f.speaker.lines, "plain chat gets no reply")
}

func TestExcludedIdentityIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("Nightbot", "!points"))

	count, err := f.ledger.TotalAccounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.speaker.lines)
}

func TestPointsCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("alice", "!points"))

	require.Len(t, f.speaker.lines, 1)
	assert.Contains(t, f.speaker.last(), "@alice")
	assert.Contains(t, f.speaker.last(), "10 points")
}

func TestDailyCommandOncePerWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("alice", "!daily"))
	assert.Contains(t, f.speaker.last(), "+50")

	f.router.HandleMessage(ctx, viewer("alice", "!daily"))
	assert.Contains(t, f.speaker.last(), "once per 24 hours")
}

func TestBuyCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Credit(ctx, "alice", 1000, true))

	f.router.HandleMessage(ctx, viewer("alice", "!buy vip_hour"))
	assert.Contains(t, f.speaker.last(), "bought")

	f.router.HandleMessage(ctx, viewer("alice", "!buy vip_hour"))
	assert.Contains(t, f.speaker.last(), "already have")

	f.router.HandleMessage(ctx, viewer("alice", "!buy jetpack"))
	assert.Contains(t, f.speaker.last(), "no such reward")
}

func TestBuyInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("alice", "!buy vip_hour"))
	assert.Contains(t, f.speaker.last(), "not enough points")
}

func TestInventoryCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("alice", "!inventory"))
	assert.Contains(t, f.speaker.last(), "empty")

	_, err := f.shop.Grant(ctx, "alice", string(catalog.KindVIPHour))
	require.NoError(t, err)

	f.router.HandleMessage(ctx, viewer("alice", "!inventory"))
	assert.Contains(t, f.speaker.last(), "VIP until")
}

func TestAdminCommandsRequirePrivilege(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("alice", "!setpoints bob 500"))
	require.Len(t, f.speaker.lines, 0, "unprivileged admin commands are ignored")

	f.router.HandleMessage(ctx, moderator("mod", "!setpoints bob 500"))
	assert.Contains(t, f.speaker.last(), "@bob now has 500 points")

	account, err := f.ledger.GetOrCreate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)
}

func TestOwnerIsAlwaysPrivileged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, viewer("kranik", "!addpoints alice 100"))
	assert.Contains(t, f.speaker.last(), "now has")

	account, err := f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	// 100 admin credit plus the first message bonus on the owner's line
	// belongs to the owner, not alice.
	assert.Equal(t, int64(100), account.Balance)
}

func TestGrantAndRevokeCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.router.HandleMessage(ctx, moderator("mod", "!grant @alice discord_role"))
	assert.Contains(t, f.speaker.last(), "for free")

	active, err := f.shop.HasActive(ctx, "alice", string(catalog.KindDiscordRole))
	require.NoError(t, err)
	assert.True(t, active)

	f.router.HandleMessage(ctx, moderator("mod", "!revoke @alice discord_role"))
	assert.Contains(t, f.speaker.last(), "revoked")

	active, err = f.shop.HasActive(ctx, "alice", string(catalog.KindDiscordRole))
	require.NoError(t, err)
	assert.False(t, active)
}

func TestResetAllNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Credit(ctx, "alice", 100, true))

	f.router.HandleMessage(ctx, moderator("mod", "!resetall"))
	assert.Contains(t, f.speaker.last(), "confirm")

	account, err := f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)

	f.router.HandleMessage(ctx, moderator("mod", "!resetall confirm"))
	assert.Contains(t, f.speaker.last(), "Season reset")

	account, err = f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, account.Balance)
}

func TestUnknownCommandIsSilent(t *testing.T) {
	f := newFixture(t)
	f.router.HandleMessage(context.Background(), viewer("alice", "!dance"))
	assert.Empty(t, f.speaker.lines)
}

func TestTopCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.Credit(ctx, "bob", 300, true))
	require.NoError(t, f.ledger.Credit(ctx, "carol", 100, true))

	f.router.HandleMessage(ctx, viewer("alice", "!top"))
	last := f.speaker.last()
	assert.Contains(t, last, "1. bob (300)")
	assert.True(t, strings.Index(last, "bob") < strings.Index(last, "carol"))
}

func TestIneligibleMessageAccruesNoBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := viewer("alice", "hello chat")
	m.Eligible = false
	f.router.HandleMessage(ctx, m)

	account, err := f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, account.Balance, "bonus gate closed")
	assert.Equal(t, int64(1), account.MessageCount)

	// The first-message opportunity was consumed, so a later eligible
	// line earns nothing either.
	f.router.HandleMessage(ctx, viewer("alice", "hi again"))
	account, err = f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, account.Balance)
	assert.Equal(t, int64(2), account.MessageCount)
}

func TestIneligibleDailyRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := viewer("alice", "!daily")
	m.Eligible = false
	f.router.HandleMessage(ctx, m)

	require.Len(t, f.speaker.lines, 1)
	assert.Contains(t, f.speaker.lines[0], "not unlocked")

	account, err := f.ledger.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, account.Balance)
}
