package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// GameStore is the SQLite implementation of store.GameStore.
type GameStore struct {
	db *sql.DB
}

// NewGameStore creates a GameStore on an opened ledger database.
func NewGameStore(db *sql.DB) *GameStore {
	return &GameStore{db: db}
}

// RecordResult increments the counters for one finished round, creating the
// row on first play of that game kind by that identity.
func (s *GameStore) RecordResult(ctx context.Context, identity, gameKind string, won bool) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_stats (identity, game_kind, wins, losses, total_played)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (identity, game_kind)
		DO UPDATE SET wins = wins + ?, losses = losses + ?, total_played = total_played + 1`,
		identity, gameKind, wins, losses, wins, losses)
	return store.WrapError("games.record_result", err)
}

// StatsFor returns all game records for an identity.
func (s *GameStore) StatsFor(ctx context.Context, identity string) ([]model.GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, game_kind, wins, losses, total_played
		FROM game_stats WHERE identity = ? ORDER BY game_kind`,
		identity)
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
