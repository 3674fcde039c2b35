// Package sqlitestore implements the store contracts on a file-backed
// SQLite database using the pure-Go modernc.org/sqlite driver. Everything
// lives in one file so the backup guard captures a complete state image
// with a single copy.
package sqlitestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at path and applies the pragmas
// the bot relies on for concurrent access.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Checkpoint moves every committed page out of the write-ahead log into the
// main database file and truncates the log. In WAL mode recent commits live
// in users.db-wal, so anything copying the database file alone must run a
// checkpoint first or the copy misses them.
func Checkpoint(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}

// columnExists checks the table_info pragma for a named column. Schema
// evolution is capability-checked instead of catching "duplicate column"
// errors from a blind ALTER TABLE.
func columnExists(db *sql.DB, table, column string) bool {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&count)
	return err == nil && count > 0
}

// MigrateLedger creates or upgrades the accounts and game_stats tables.
func MigrateLedger(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		identity TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		first_bonus_granted INTEGER NOT NULL DEFAULT 0,
		last_daily_claim TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC);
	CREATE TABLE IF NOT EXISTS game_stats (
		identity TEXT NOT NULL,
		game_kind TEXT NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		total_played INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (identity, game_kind)
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	// Databases created before the first-message bonus existed lack the flag.
	if !columnExists(db, "accounts", "first_bonus_granted") {
		if _, err := db.Exec("ALTER TABLE accounts ADD COLUMN first_bonus_granted INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add first_bonus_granted column: %w", err)
		}
	}
	if !columnExists(db, "accounts", "last_daily_claim") {
		if _, err := db.Exec("ALTER TABLE accounts ADD COLUMN last_daily_claim TIMESTAMP"); err != nil {
			return fmt.Errorf("failed to add last_daily_claim column: %w", err)
		}
	}
	return nil
}

// MigrateShop creates or upgrades the purchases table.
func MigrateShop(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identity TEXT NOT NULL,
		reward_kind TEXT NOT NULL,
		purchased_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		used INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_lookup ON purchases(identity, reward_kind, active);
	CREATE INDEX IF NOT EXISTS idx_purchases_expiry ON purchases(expires_at);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create shop schema: %w", err)
	}
	if !columnExists(db, "purchases", "used") {
		if _, err := db.Exec("ALTER TABLE purchases ADD COLUMN used INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add used column: %w", err)
		}
	}
	return nil
}
