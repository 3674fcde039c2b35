package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// AccountStore is the PostgreSQL implementation of store.AccountStore.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an AccountStore on a connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Get returns the account for identity or store.ErrAccountNotFound.
func (s *AccountStore) Get(ctx context.Context, identity string) (*model.Account, error) {
	const query = `
		SELECT identity, balance, message_count, first_seen, last_seen, first_bonus_granted, last_daily_claim
		FROM accounts WHERE identity = $1`

	var a model.Account
	var lastClaim *time.Time
	err := s.pool.QueryRow(ctx, query, identity).Scan(
		&a.Identity,
		&a.Balance,
		&a.MessageCount,
		&a.FirstSeen,
		&a.LastSeen,
		&a.FirstBonusGranted,
		&lastClaim,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, store.WrapError("accounts.get", err)
	}
	a.LastDailyClaim = lastClaim
	return &a, nil
}

// Create inserts a fresh account with zero balance.
func (s *AccountStore) Create(ctx context.Context, identity string, now time.Time) (*model.Account, error) {
	const query = `
		INSERT INTO accounts (identity, balance, message_count, first_seen, last_seen, first_bonus_granted, last_daily_claim)
		VALUES ($1, 0, 0, $2, $2, FALSE, NULL)`
	if _, err := s.pool.Exec(ctx, query, identity, now); err != nil {
		return nil, store.WrapError("accounts.create", err)
	}
	return &model.Account{Identity: identity, FirstSeen: now, LastSeen: now}, nil
}

// AddBalance adds delta to the balance without clamping and bumps last_seen.
func (s *AccountStore) AddBalance(ctx context.Context, identity string, delta int64, now time.Time) error {
	return s.exec(ctx, "accounts.add_balance", `
		UPDATE accounts SET balance = balance + $2, last_seen = $3 WHERE identity = $1`,
		identity, delta, now)
}

// DeductBalance subtracts amount, clamping the balance at zero.
func (s *AccountStore) DeductBalance(ctx context.Context, identity string, amount int64, now time.Time) error {
	return s.exec(ctx, "accounts.deduct_balance", `
		UPDATE accounts SET balance = GREATEST(0, balance - $2), last_seen = $3 WHERE identity = $1`,
		identity, amount, now)
}

// SetBalance sets the balance to an absolute value.
func (s *AccountStore) SetBalance(ctx context.Context, identity string, value int64, now time.Time) error {
	return s.exec(ctx, "accounts.set_balance", `
		UPDATE accounts SET balance = $2, last_seen = $3 WHERE identity = $1`,
		identity, value, now)
}

// IncrementMessageCount bumps the message counter and last_seen.
func (s *AccountStore) IncrementMessageCount(ctx context.Context, identity string, now time.Time) error {
	return s.exec(ctx, "accounts.increment_messages", `
		UPDATE accounts SET message_count = message_count + 1, last_seen = $2 WHERE identity = $1`,
		identity, now)
}

// MarkFirstBonusGranted consumes the one-shot first message bonus flag.
func (s *AccountStore) MarkFirstBonusGranted(ctx context.Context, identity string) error {
	return s.exec(ctx, "accounts.mark_first_bonus", `
		UPDATE accounts SET first_bonus_granted = TRUE WHERE identity = $1`,
		identity)
}

// SetLastDailyClaim records a successful daily claim.
func (s *AccountStore) SetLastDailyClaim(ctx context.Context, identity string, claimedAt time.Time) error {
	return s.exec(ctx, "accounts.set_daily_claim", `
		UPDATE accounts SET last_daily_claim = $2 WHERE identity = $1`,
		identity, claimedAt)
}

// Top returns up to limit positive-balance entries, excluding the given
// identities, ordered by balance descending with creation order as the
// tie-breaker.
func (s *AccountStore) Top(ctx context.Context, limit int, excluded []string) ([]model.LeaderboardEntry, error) {
	const query = `
		SELECT identity, balance, message_count
		FROM accounts
		WHERE balance > 0 AND NOT (identity = ANY($1))
		ORDER BY balance DESC, seq ASC
		LIMIT $2`

	if excluded == nil {
		excluded = []string{}
	}
	rows, err := s.pool.Query(ctx, query, excluded, limit)
	if err != nil {
		return nil, store.WrapError("accounts.top", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Identity, &e.Balance, &e.MessageCount); err != nil {
			return nil, store.WrapError("accounts.top", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapError("accounts.top", err)
	}
	return entries, nil
}

// CountAccounts returns the total number of accounts.
func (s *AccountStore) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, store.WrapError("accounts.count", err)
	}
	return count, nil
}

// SumBalances returns the sum of all balances.
func (s *AccountStore) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return 0, store.WrapError("accounts.sum", err)
	}
	return total, nil
}

// ResetAllBalances zeroes every non-zero balance and returns the number of
// accounts touched.
func (s *AccountStore) ResetAllBalances(ctx context.Context) (int64, error) {
	res, err := s.pool.Exec(ctx, `UPDATE accounts SET balance = 0 WHERE balance <> 0`)
	if err != nil {
		return 0, store.WrapError("accounts.reset_all", err)
	}
	return res.RowsAffected(), nil
}

func (s *AccountStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return store.WrapError(op, err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}
