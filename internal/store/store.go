// Package store defines the persistence contracts for the points ledger,
// the purchase inventory and the game counters. Two backends implement them:
// sqlitestore (file-based, default) and pgstore (PostgreSQL).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Finalway1606/kranikbot-api/internal/model"
)

// ErrAccountNotFound is returned when an identity has no account row.
var ErrAccountNotFound = errors.New("account not found")

// StorageError wraps an underlying persistence failure. Callers can detect
// storage-level problems with errors.As and still unwrap the driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapError wraps err in a StorageError unless it is nil or already a
// domain sentinel that must pass through unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// AccountStore persists per-identity balances and activity state.
// Implementations provide durability only; serialization of read-modify-write
// sequences is the caller's responsibility (see the lock package).
type AccountStore interface {
	// Get returns the account for identity or ErrAccountNotFound.
	Get(ctx context.Context, identity string) (*model.Account, error)
	// Create inserts a fresh account with zero balance.
	Create(ctx context.Context, identity string, now time.Time) (*model.Account, error)
	// AddBalance adds delta to the balance (no clamping) and bumps last_seen.
	AddBalance(ctx context.Context, identity string, delta int64, now time.Time) error
	// DeductBalance subtracts amount, clamping the balance at zero.
	DeductBalance(ctx context.Context, identity string, amount int64, now time.Time) error
	// SetBalance sets the balance to an absolute value.
	SetBalance(ctx context.Context, identity string, value int64, now time.Time) error
	// IncrementMessageCount bumps the message counter and last_seen.
	IncrementMessageCount(ctx context.Context, identity string, now time.Time) error
	// MarkFirstBonusGranted consumes the one-shot first message bonus flag.
	MarkFirstBonusGranted(ctx context.Context, identity string) error
	// SetLastDailyClaim records a successful daily claim.
	SetLastDailyClaim(ctx context.Context, identity string, claimedAt time.Time) error
	// Top returns up to limit entries with positive balance, excluding the
	// given identities, ordered by balance descending then creation order.
	Top(ctx context.Context, limit int, excluded []string) ([]model.LeaderboardEntry, error)
	// CountAccounts returns the total number of accounts.
	CountAccounts(ctx context.Context) (int64, error)
	// SumBalances returns the sum of all balances.
	SumBalances(ctx context.Context) (int64, error)
	// ResetAllBalances zeroes every non-zero balance and returns how many
	// accounts were touched.
	ResetAllBalances(ctx context.Context) (int64, error)
}

// GameStore persists per (identity, game kind) win/loss counters.
type GameStore interface {
	// RecordResult increments the counters for one finished round,
	// creating the row on first play.
	RecordResult(ctx context.Context, identity, gameKind string, won bool) error
	// StatsFor returns all game records for an identity.
	StatsFor(ctx context.Context, identity string) ([]model.GameRecord, error)
}

// PurchaseStore persists reward purchases. Rows are soft-deleted by flipping
// the active flag; they are never removed.
type PurchaseStore interface {
	// Insert stores a new purchase and returns its id.
	Insert(ctx context.Context, p *model.Purchase) (int64, error)
	// HasActive reports whether identity holds an active, unexpired purchase
	// of the given kind at instant now.
	HasActive(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error)
	// ActiveFor returns identity's active, unexpired purchases ascending by
	// expiry.
	ActiveFor(ctx context.Context, identity string, now time.Time) ([]model.Purchase, error)
	// DeactivateExpired flips active=false on every purchase expired at now
	// and returns how many rows changed. Idempotent.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	// Deactivate revokes identity's active purchases of the given kind and
	// reports whether any row changed.
	Deactivate(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error)
	// MarkUsed flips the used flag on identity's active purchase of the given
	// kind and reports whether any row changed.
	MarkUsed(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error)
	// DeactivateAll flips active=false on every active purchase and returns
	// how many rows changed.
	DeactivateAll(ctx context.Context) (int64, error)
}
