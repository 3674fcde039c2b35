package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateLedger(db))
	require.NoError(t, MigrateShop(db))
	return db
}

func TestAccountStoreCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	_, err := accounts.Get(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	created, err := accounts.Create(ctx, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Identity)
	assert.Zero(t, created.Balance)
	assert.Zero(t, created.MessageCount)
	assert.False(t, created.FirstBonusGranted)
	assert.Nil(t, created.LastDailyClaim)

	got, err := accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.Identity, got.Identity)
}

func TestAccountStoreBalanceOps(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	_, err := accounts.Create(ctx, "alice", now)
	require.NoError(t, err)

	require.NoError(t, accounts.AddBalance(ctx, "alice", 100, now))
	require.NoError(t, accounts.DeductBalance(ctx, "alice", 30, now))

	got, err := accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(70), got.Balance)

	// Deducting more than the balance clamps at zero.
	require.NoError(t, accounts.DeductBalance(ctx, "alice", 1000, now))
	got, err = accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, got.Balance)

	require.NoError(t, accounts.SetBalance(ctx, "alice", 42, now))
	got, err = accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Balance)
}

func TestAccountStoreMissingIdentity(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	assert.ErrorIs(t, accounts.AddBalance(ctx, "ghost", 10, now), store.ErrAccountNotFound)
	assert.ErrorIs(t, accounts.DeductBalance(ctx, "ghost", 10, now), store.ErrAccountNotFound)
	assert.ErrorIs(t, accounts.IncrementMessageCount(ctx, "ghost", now), store.ErrAccountNotFound)
	assert.ErrorIs(t, accounts.MarkFirstBonusGranted(ctx, "ghost"), store.ErrAccountNotFound)
}

func TestAccountStoreActivityFlags(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	_, err := accounts.Create(ctx, "alice", now)
	require.NoError(t, err)

	require.NoError(t, accounts.IncrementMessageCount(ctx, "alice", now))
	require.NoError(t, accounts.IncrementMessageCount(ctx, "alice", now))
	require.NoError(t, accounts.MarkFirstBonusGranted(ctx, "alice"))

	claim := now.Truncate(time.Second)
	require.NoError(t, accounts.SetLastDailyClaim(ctx, "alice", claim))

	got, err := accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MessageCount)
	assert.True(t, got.FirstBonusGranted)
	require.NotNil(t, got.LastDailyClaim)
	assert.WithinDuration(t, claim, *got.LastDailyClaim, time.Second)
}

func TestAccountStoreTop(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	seed := map[string]int64{
		"alice":          300,
		"bob":            100,
		"carol":          200,
		"dave":           0,
		"streamelements": 9999,
	}
	for identity, balance := range seed {
		_, err := accounts.Create(ctx, identity, now)
		require.NoError(t, err)
		require.NoError(t, accounts.SetBalance(ctx, identity, balance, now))
	}

	entries, err := accounts.Top(ctx, 10, []string{"streamelements"})
	require.NoError(t, err)

	// Excluded identities and zero balances never rank.
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].Identity)
	assert.Equal(t, "carol", entries[1].Identity)
	assert.Equal(t, "bob", entries[2].Identity)

	entries, err = accounts.Top(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "streamelements", entries[0].Identity)
}

func TestAccountStoreTopTieOrder(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	for _, identity := range []string{"first", "second", "third"} {
		_, err := accounts.Create(ctx, identity, now)
		require.NoError(t, err)
		require.NoError(t, accounts.SetBalance(ctx, identity, 100, now))
	}

	// Equal balances rank in creation order, stable across calls.
	for i := 0; i < 3; i++ {
		entries, err := accounts.Top(ctx, 10, nil)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "first", entries[0].Identity)
		assert.Equal(t, "second", entries[1].Identity)
		assert.Equal(t, "third", entries[2].Identity)
	}
}

func TestAccountStoreAggregatesAndReset(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewAccountStore(db)
	ctx := context.Background()
	now := time.Now()

	for identity, balance := range map[string]int64{"a": 10, "b": 20, "c": 0} {
		_, err := accounts.Create(ctx, identity, now)
		require.NoError(t, err)
		require.NoError(t, accounts.SetBalance(ctx, identity, balance, now))
	}

	count, err := accounts.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	total, err := accounts.SumBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)

	affected, err := accounts.ResetAllBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected, "only non-zero balances count as affected")

	total, err = accounts.SumBalances(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGameStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	games := NewGameStore(db)
	ctx := context.Background()

	require.NoError(t, games.RecordResult(ctx, "alice", model.GameDice, true))
	require.NoError(t, games.RecordResult(ctx, "alice", model.GameDice, false))
	require.NoError(t, games.RecordResult(ctx, "alice", model.GameQuiz, true))

	records, err := games.StatsFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)

	byKind := map[string]model.GameRecord{}
	for _, rec := range records {
		byKind[rec.GameKind] = rec
	}
	assert.Equal(t, int64(1), byKind[model.GameDice].Wins)
	assert.Equal(t, int64(1), byKind[model.GameDice].Losses)
	assert.Equal(t, int64(2), byKind[model.GameDice].TotalPlayed)
	assert.Equal(t, int64(1), byKind[model.GameQuiz].Wins)
}

func TestPurchaseStoreLifecycle(t *testing.T) {
	db := setupTestDB(t)
	purchases := NewPurchaseStore(db)
	ctx := context.Background()
	now := time.Now()

	id, err := purchases.Insert(ctx, &model.Purchase{
		Identity:    "alice",
		RewardKind:  "vip_hour",
		PurchasedAt: now,
		ExpiresAt:   now.Add(time.Hour),
		Active:      true,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	active, err := purchases.HasActive(ctx, "alice", "vip_hour", now)
	require.NoError(t, err)
	assert.True(t, active)

	// Expired purchases no longer count as active even before the sweep.
	active, err = purchases.HasActive(ctx, "alice", "vip_hour", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, active)

	list, err := purchases.ActiveFor(ctx, "alice", now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "vip_hour", list[0].RewardKind)

	used, err := purchases.MarkUsed(ctx, "alice", "vip_hour", now)
	require.NoError(t, err)
	assert.True(t, used)

	revoked, err := purchases.Deactivate(ctx, "alice", "vip_hour", now)
	require.NoError(t, err)
	assert.True(t, revoked)

	active, err = purchases.HasActive(ctx, "alice", "vip_hour", now)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestPurchaseStoreSweepAndResetAll(t *testing.T) {
	db := setupTestDB(t)
	purchases := NewPurchaseStore(db)
	ctx := context.Background()
	now := time.Now()

	for i, kind := range []string{"vip_hour", "stream_title", "discord_role"} {
		_, err := purchases.Insert(ctx, &model.Purchase{
			Identity:    "alice",
			RewardKind:  kind,
			PurchasedAt: now,
			ExpiresAt:   now.Add(time.Duration(i-1) * time.Hour),
			Active:      true,
		})
		require.NoError(t, err)
	}

	// vip_hour expired an hour ago, stream_title expires exactly now.
	swept, err := purchases.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), swept)

	swept, err = purchases.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, swept, "sweep is idempotent")

	affected, err := purchases.DeactivateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, MigrateLedger(db))
	require.NoError(t, MigrateShop(db))
}
