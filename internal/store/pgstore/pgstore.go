// Package pgstore implements the store contracts on PostgreSQL using a
// pgx connection pool. It is the alternate backend for deployments that
// outgrow the file-based default.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	PoolSize       int
	ConnectTimeout time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name,
	)
}

// NewPool creates a PostgreSQL connection pool and verifies the connection.
func NewPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	} else {
		poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	}
	poolConfig.HealthCheckPeriod = 30 * time.Second

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates or upgrades the schema. All statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{`
		CREATE TABLE IF NOT EXISTS accounts (
			identity TEXT PRIMARY KEY,
			seq BIGSERIAL,
			balance BIGINT NOT NULL DEFAULT 0,
			message_count BIGINT NOT NULL DEFAULT 0,
			first_seen TIMESTAMPTZ NOT NULL,
			last_seen TIMESTAMPTZ NOT NULL,
			first_bonus_granted BOOLEAN NOT NULL DEFAULT FALSE,
			last_daily_claim TIMESTAMPTZ
		)`, `
		CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC)`, `
		CREATE TABLE IF NOT EXISTS game_stats (
			identity TEXT NOT NULL,
			game_kind TEXT NOT NULL,
			wins BIGINT NOT NULL DEFAULT 0,
			losses BIGINT NOT NULL DEFAULT 0,
			total_played BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (identity, game_kind)
		)`, `
		CREATE TABLE IF NOT EXISTS purchases (
			id BIGSERIAL PRIMARY KEY,
			identity TEXT NOT NULL,
			reward_kind TEXT NOT NULL,
			purchased_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			used BOOLEAN NOT NULL DEFAULT FALSE
		)`, `
		CREATE INDEX IF NOT EXISTS idx_purchases_lookup ON purchases(identity, reward_kind, active)`, `
		CREATE INDEX IF NOT EXISTS idx_purchases_expiry ON purchases(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
