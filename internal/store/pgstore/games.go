package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// GameStore is the PostgreSQL implementation of store.GameStore.
type GameStore struct {
	pool *pgxpool.Pool
}

// NewGameStore creates a GameStore on a connection pool.
func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

// RecordResult increments the counters for one finished round, creating the
// row on first play of that game kind by that identity.
func (s *GameStore) RecordResult(ctx context.Context, identity, gameKind string, won bool) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	const query = `
		INSERT INTO game_stats (identity, game_kind, wins, losses, total_played)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (identity, game_kind)
		DO UPDATE SET
			wins = game_stats.wins + $3,
			losses = game_stats.losses + $4,
			total_played = game_stats.total_played + 1`
	_, err := s.pool.Exec(ctx, query, identity, gameKind, wins, losses)
	return store.WrapError("games.record_result", err)
}

// StatsFor returns all game records for an identity.
func (s *GameStore) StatsFor(ctx context.Context, identity string) ([]model.GameRecord, error) {
	const query = `
		SELECT identity, game_kind, wins, losses, total_played
		FROM game_stats WHERE identity = $1 ORDER BY game_kind`

	rows, err := s.pool.Query(ctx, query, identity)
	if err != nil {
		return nil, store.WrapError("games.stats_for", err)
	}
	defer rows.Close()

	var records []model.GameRecord
	for rows.Next() {
		var r model.GameRecord
		if err := rows.Scan(&r.Identity, &r.GameKind, &r.Wins, &r.Losses, &r.TotalPlayed); err != nil {
			return nil, store.WrapError("games.stats_for", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapError("games.stats_for", err)
	}
	return records, nil
}
