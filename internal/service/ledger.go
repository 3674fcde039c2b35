package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/pkg/lock"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// Default point grants.
const (
	FirstMessageBonus = 10
	DailyBonus        = 50
	DailyWindow       = 24 * time.Hour
)

// Snapshotter takes a durable snapshot of the persisted stores before a
// destructive bulk operation. See the backup package.
type Snapshotter interface {
	Snapshot(reason string) error
}

// NopSnapshotter satisfies Snapshotter without doing anything. Used for
// backends whose state is not a local file.
type NopSnapshotter struct{}

// Snapshot implements Snapshotter.
func (NopSnapshotter) Snapshot(string) error { return nil }

// LedgerService owns per-identity balances, message counters and game stats.
// Every mutation runs under the ledger lock so concurrent chat events cannot
// lose updates.
type LedgerService struct {
	accounts  store.AccountStore
	games     store.GameStore
	guard     *lock.Guard
	snapshots Snapshotter
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(accounts store.AccountStore, games store.GameStore, guard *lock.Guard, snapshots Snapshotter) *LedgerService {
	if snapshots == nil {
		snapshots = NopSnapshotter{}
	}
	return &LedgerService{
		accounts:  accounts,
		games:     games,
		guard:     guard,
		snapshots: snapshots,
	}
}

// Normalize folds a chat username to its canonical identity form.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// getOrCreate returns the identity's account, creating it with zero balance
// on first sight. The ledger lock must already be held.
func (s *LedgerService) getOrCreate(ctx context.Context, identity string, now time.Time) (*model.Account, error) {
	account, err := s.accounts.Get(ctx, identity)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return nil, err
	}
	return s.accounts.Create(ctx, identity, now)
}

// GetOrCreate returns the account for identity, creating it lazily.
func (s *LedgerService) GetOrCreate(ctx context.Context, identity string) (*model.Account, error) {
	identity = Normalize(identity)
	var account *model.Account
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		var err error
		account, err = s.getOrCreate(ctx, identity, time.Now())
		return err
	})
	return account, err
}

// Credit adds amount to identity's balance. It is a no-op when the caller's
// eligibility gate is closed; the service does not decide eligibility, it
// only enforces the gate.
func (s *LedgerService) Credit(ctx context.Context, identity string, amount int64, eligible bool) error {
	if !eligible {
		return nil
	}
	identity = Normalize(identity)
	return s.guard.With(ctx, lock.KeyLedger, func() error {
		now := time.Now()
		if _, err := s.getOrCreate(ctx, identity, now); err != nil {
			return err
		}
		return s.accounts.AddBalance(ctx, identity, amount, now)
	})
}

// Debit subtracts amount from identity's balance, clamping at zero. It never
// fails on insufficient funds; callers that need a hard check read the
// balance first, inside the same lock epoch.
func (s *LedgerService) Debit(ctx context.Context, identity string, amount int64) error {
	identity = Normalize(identity)
	return s.guard.With(ctx, lock.KeyLedger, func() error {
		now := time.Now()
		if _, err := s.getOrCreate(ctx, identity, now); err != nil {
			return err
		}
		return s.accounts.DeductBalance(ctx, identity, amount, now)
	})
}

// SetBalance sets identity's balance to an absolute value (administrative
// correction).
func (s *LedgerService) SetBalance(ctx context.Context, identity string, value int64) error {
	identity = Normalize(identity)
	return s.guard.With(ctx, lock.KeyLedger, func() error {
		now := time.Now()
		if _, err := s.getOrCreate(ctx, identity, now); err != nil {
			return err
		}
		return s.accounts.SetBalance(ctx, identity, value, now)
	})
}

// RecordMessage counts one chat message for identity and returns the points
// awarded. The first-ever message grants FirstMessageBonus when eligible;
// the bonus opportunity is consumed on the first message either way.
func (s *LedgerService) RecordMessage(ctx context.Context, identity string, eligible bool) (int64, error) {
	identity = Normalize(identity)
	var awarded int64
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		now := time.Now()
		account, err := s.getOrCreate(ctx, identity, now)
		if err != nil {
			return err
		}
		if !account.FirstBonusGranted {
			if err := s.accounts.MarkFirstBonusGranted(ctx, identity); err != nil {
				return err
			}
			if eligible {
				if err := s.accounts.AddBalance(ctx, identity, FirstMessageBonus, now); err != nil {
					return err
				}
				awarded = FirstMessageBonus
			}
		}
		return s.accounts.IncrementMessageCount(ctx, identity, now)
	})
	return awarded, err
}

// ClaimDaily grants the daily bonus at most once per rolling 24 hour window.
// Returns the amount granted; 0 means not granted.
func (s *LedgerService) ClaimDaily(ctx context.Context, identity string, eligible bool) (int64, error) {
	if !eligible {
		return 0, nil
	}
	identity = Normalize(identity)
	var awarded int64
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		now := time.Now()
		account, err := s.getOrCreate(ctx, identity, now)
		if err != nil {
			return err
		}
		if account.LastDailyClaim != nil && now.Sub(*account.LastDailyClaim) < DailyWindow {
			return nil
		}
		if err := s.accounts.AddBalance(ctx, identity, DailyBonus, now); err != nil {
			return err
		}
		if err := s.accounts.SetLastDailyClaim(ctx, identity, now); err != nil {
			return err
		}
		awarded = DailyBonus
		return nil
	})
	return awarded, err
}

// Top returns the leaderboard: up to n positive-balance accounts outside the
// exclusion set, highest balance first, creation order breaking ties. The
// snapshot is taken under the lock; callers hash or render it afterwards.
func (s *LedgerService) Top(ctx context.Context, n int, excluded []string) ([]model.LeaderboardEntry, error) {
	normalized := make([]string, 0, len(excluded))
	for _, identity := range excluded {
		normalized = append(normalized, Normalize(identity))
	}
	var entries []model.LeaderboardEntry
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		var err error
		entries, err = s.accounts.Top(ctx, n, normalized)
		return err
	})
	return entries, err
}

// TotalAccounts returns the number of known accounts.
func (s *LedgerService) TotalAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		var err error
		count, err = s.accounts.CountAccounts(ctx)
		return err
	})
	return count, err
}

// TotalBalance returns the sum of all balances.
func (s *LedgerService) TotalBalance(ctx context.Context) (int64, error) {
	var total int64
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		var err error
		total, err = s.accounts.SumBalances(ctx)
		return err
	})
	return total, err
}

// ResetAllBalances zeroes every balance after taking a backup snapshot.
// The snapshot is mandatory: without it the reset would be irreversible.
// Both stores share the database file, so the snapshot runs under the
// inventory lock too.
func (s *LedgerService) ResetAllBalances(ctx context.Context) (int64, error) {
	var affected int64
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		if err := s.guard.With(ctx, lock.KeyInventory, func() error {
			return s.snapshots.Snapshot("reset_all_balances")
		}); err != nil {
			return err
		}
		var err error
		affected, err = s.accounts.ResetAllBalances(ctx)
		return err
	})
	if err == nil {
		log.Warn().Int64("accounts", affected).Msg("All balances reset to zero")
	}
	return affected, err
}

// RecordGameResult updates the win/loss counters for one finished round.
func (s *LedgerService) RecordGameResult(ctx context.Context, identity, gameKind string, won bool) error {
	identity = Normalize(identity)
	return s.guard.With(ctx, lock.KeyLedger, func() error {
		if _, err := s.getOrCreate(ctx, identity, time.Now()); err != nil {
			return err
		}
		return s.games.RecordResult(ctx, identity, gameKind, won)
	})
}

// GameStats returns identity's per-game counters.
func (s *LedgerService) GameStats(ctx context.Context, identity string) ([]model.GameRecord, error) {
	identity = Normalize(identity)
	var records []model.GameRecord
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		var err error
		records, err = s.games.StatsFor(ctx, identity)
		return err
	})
	return records, err
}
