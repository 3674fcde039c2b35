// Package model defines the data models for the kranikbot points system.
package model

import "time"

// Account represents a single chat identity in the points ledger.
// The identity is the normalized (lower-cased) chat username and is immutable.
type Account struct {
	Identity          string     `db:"identity"`
	Balance           int64      `db:"balance"`
	MessageCount      int64      `db:"message_count"`
	FirstSeen         time.Time  `db:"first_seen"`
	LastSeen          time.Time  `db:"last_seen"`
	FirstBonusGranted bool       `db:"first_bonus_granted"`
	LastDailyClaim    *time.Time `db:"last_daily_claim"`
}

// GameRecord holds win/loss counters per (identity, game kind) pair.
// Counters only ever grow; rows are never deleted.
type GameRecord struct {
	Identity    string `db:"identity"`
	GameKind    string `db:"game_kind"`
	Wins        int64  `db:"wins"`
	Losses      int64  `db:"losses"`
	TotalPlayed int64  `db:"total_played"`
}

// Purchase represents one reward acquisition. Expired or revoked purchases
// stay in the table with Active=false for audit.
type Purchase struct {
	ID          int64     `db:"id"`
	Identity    string    `db:"identity"`
	RewardKind  string    `db:"reward_kind"`
	PurchasedAt time.Time `db:"purchased_at"`
	ExpiresAt   time.Time `db:"expires_at"`
	Active      bool      `db:"active"`
	Used        bool      `db:"used"`
}

// LeaderboardEntry is one row of the derived leaderboard view.
type LeaderboardEntry struct {
	Identity     string `db:"identity"`
	Balance      int64  `db:"balance"`
	MessageCount int64  `db:"message_count"`
}

// Game kinds tracked by the stats counters.
const (
	GameDice     = "dice"
	GameCoinFlip = "coinflip"
	GameRoulette = "roulette"
	GameQuiz     = "quiz"
)
