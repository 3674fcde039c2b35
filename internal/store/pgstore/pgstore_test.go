// Tests use testcontainers-go to spin up a PostgreSQL container and are
// skipped when Docker is not available.
package pgstore

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container, runs the migrations and
// returns a connection pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	})
	return pool
}

func TestAccountStoreRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	accounts := NewAccountStore(pool)
	ctx := context.Background()
	now := time.Now()

	_, err := accounts.Get(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	created, err := accounts.Create(ctx, "alice", now)
	require.NoError(t, err)
	assert.Zero(t, created.Balance)

	require.NoError(t, accounts.AddBalance(ctx, "alice", 150, now))
	require.NoError(t, accounts.DeductBalance(ctx, "alice", 500, now))

	got, err := accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, got.Balance, "deduction clamps at zero")

	require.NoError(t, accounts.MarkFirstBonusGranted(ctx, "alice"))
	require.NoError(t, accounts.IncrementMessageCount(ctx, "alice", now))
	require.NoError(t, accounts.SetLastDailyClaim(ctx, "alice", now))

	got, err = accounts.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.FirstBonusGranted)
	assert.Equal(t, int64(1), got.MessageCount)
	require.NotNil(t, got.LastDailyClaim)
}

func TestAccountStoreTopExcludesAndOrders(t *testing.T) {
	pool := setupTestDB(t)
	accounts := NewAccountStore(pool)
	ctx := context.Background()
	now := time.Now()

	for identity, balance := range map[string]int64{
		"alice": 300, "bob": 100, "nightbot": 5000, "idle": 0,
	} {
		_, err := accounts.Create(ctx, identity, now)
		require.NoError(t, err)
		require.NoError(t, accounts.SetBalance(ctx, identity, balance, now))
	}

	entries, err := accounts.Top(ctx, 10, []string{"nightbot"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Identity)
	assert.Equal(t, "bob", entries[1].Identity)

	count, err := accounts.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	affected, err := accounts.ResetAllBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
}

func TestGameStoreCounters(t *testing.T) {
	pool := setupTestDB(t)
	accounts := NewAccountStore(pool)
	games := NewGameStore(pool)
	ctx := context.Background()

	_, err := accounts.Create(ctx, "alice", time.Now())
	require.NoError(t, err)

	require.NoError(t, games.RecordResult(ctx, "alice", model.GameRoulette, true))
	require.NoError(t, games.RecordResult(ctx, "alice", model.GameRoulette, false))

	records, err := games.StatsFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Wins)
	assert.Equal(t, int64(1), records[0].Losses)
	assert.Equal(t, int64(2), records[0].TotalPlayed)
}

func TestPurchaseStoreLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	purchases := NewPurchaseStore(pool)
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

	swept, err := purchases.DeactivateExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	active, err = purchases.HasActive(ctx, "alice", "vip_hour", now)
	require.NoError(t, err)
	assert.False(t, active)
}
