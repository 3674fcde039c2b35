package service

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Finalway1606/kranikbot-api/internal/pkg/lock"
	"github.com/Finalway1606/kranikbot-api/internal/store/sqlitestore"
)

// snapshotRecorder satisfies Snapshotter and records the reasons it was
// called with.
type snapshotRecorder struct {
	mu      sync.Mutex
	reasons []string
	fail    error
}

func (r *snapshotRecorder) Snapshot(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.reasons = append(r.reasons, reason)
	return nil
}

func (r *snapshotRecorder) taken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

// fixture wires the full service stack on a throwaway SQLite file. The raw
// handle is kept so tests can age rows past timestamps the services derive
// from the wall clock.
type fixture struct {
	db        *sql.DB
	ledger    *LedgerService
	shop      *ShopService
	snapshots *snapshotRecorder
	guard     *lock.Guard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlitestore.MigrateLedger(db))
	require.NoError(t, sqlitestore.MigrateShop(db))

	accounts := sqlitestore.NewAccountStore(db)
	games := sqlitestore.NewGameStore(db)
	purchases := sqlitestore.NewPurchaseStore(db)

	guard := lock.New(5 * time.Second)
	snapshots := &snapshotRecorder{}
	return &fixture{
		db:        db,
		ledger:    NewLedgerService(accounts, games, guard, snapshots),
		shop:      NewShopService(accounts, purchases, guard, snapshots),
		snapshots: snapshots,
		guard:     guard,
	}
}
