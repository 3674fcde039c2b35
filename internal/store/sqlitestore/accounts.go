package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// AccountStore is the SQLite implementation of store.AccountStore.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates an AccountStore on an opened ledger database.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `identity, balance, message_count, first_seen, last_seen, first_bonus_granted, last_daily_claim`

func scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	var lastClaim sql.NullTime
	err := row.Scan(
		&a.Identity,
		&a.Balance,
		&a.MessageCount,
		&a.FirstSeen,
		&a.LastSeen,
		&a.FirstBonusGranted,
		&lastClaim,
	)
	if err != nil {
		return nil, err
	}
	if lastClaim.Valid {
		t := lastClaim.Time
		a.LastDailyClaim = &t
	}
	return &a, nil
}

// Get returns the account for identity or store.ErrAccountNotFound.
func (s *AccountStore) Get(ctx context.Context, identity string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identity = ?`, identity)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, store.WrapError("accounts.get", err)
	}
	return account, nil
}

// Create inserts a fresh account with zero balance.
func (s *AccountStore) Create(ctx context.Context, identity string, now time.Time) (*model.Account, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (identity, balance, message_count, first_seen, last_seen, first_bonus_granted, last_daily_claim)
		VALUES (?, 0, 0, ?, ?, 0, NULL)`,
		identity, now, now)
	if err != nil {
		return nil, store.WrapError("accounts.create", err)
	}
	return &model.Account{
		Identity:  identity,
		FirstSeen: now,
		LastSeen:  now,
	}, nil
}

// AddBalance adds delta to the balance without clamping and bumps last_seen.
func (s *AccountStore) AddBalance(ctx context.Context, identity string, delta int64, now time.Time) error {
	return s.exec(ctx, "accounts.add_balance", `
		UPDATE accounts SET balance = balance + ?, last_seen = ? WHERE identity = ?`,
		delta, now, identity)
}

// DeductBalance subtracts amount, clamping the balance at zero.
func (s *AccountStore) DeductBalance(ctx context.Context, identity string, amount int64, now time.Time) error {
	return s.exec(ctx, "accounts.deduct_balance", `
		UPDATE accounts SET balance = MAX(0, balance - ?), last_seen = ? WHERE identity = ?`,
		amount, now, identity)
}

// SetBalance sets the balance to an absolute value.
func (s *AccountStore) SetBalance(ctx context.Context, identity string, value int64, now time.Time) error {
	return s.exec(ctx, "accounts.set_balance", `
		UPDATE accounts SET balance = ?, last_seen = ? WHERE identity = ?`,
		value, now, identity)
}

// IncrementMessageCount bumps the message counter and last_seen.
func (s *AccountStore) IncrementMessageCount(ctx context.Context, identity string, now time.Time) error {
	return s.exec(ctx, "accounts.increment_messages", `
		UPDATE accounts SET message_count = message_count + 1, last_seen = ? WHERE identity = ?`,
		now, identity)
}

// MarkFirstBonusGranted consumes the one-shot first message bonus flag.
func (s *AccountStore) MarkFirstBonusGranted(ctx context.Context, identity string) error {
	return s.exec(ctx, "accounts.mark_first_bonus", `
		UPDATE accounts SET first_bonus_granted = 1 WHERE identity = ?`,
		identity)
}

// SetLastDailyClaim records a successful daily claim.
func (s *AccountStore) SetLastDailyClaim(ctx context.Context, identity string, claimedAt time.Time) error {
	return s.exec(ctx, "accounts.set_daily_claim", `
		UPDATE accounts SET last_daily_claim = ? WHERE identity = ?`,
		claimedAt, identity)
}

// Top returns up to limit positive-balance entries, excluding the given
// identities, ordered by balance descending with creation order as the
// tie-breaker.
func (s *AccountStore) Top(ctx context.Context, limit int, excluded []string) ([]model.LeaderboardEntry, error) {
	query := `SELECT identity, balance, message_count FROM accounts WHERE balance > 0`
	args := make([]any, 0, len(excluded)+1)
	if len(excluded) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(excluded)), ",")
		query += ` AND identity NOT IN (` + placeholders + `)`
		for _, identity := range excluded {
			args = append(args, identity)
		}
	}
	query += ` ORDER BY balance DESC, rowid ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, store.WrapError("accounts.count", err)
	}
	return count, nil
}

// SumBalances returns the sum of all balances.
func (s *AccountStore) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return 0, store.WrapError("accounts.sum", err)
	}
	return total, nil
}

// ResetAllBalances zeroes every non-zero balance and returns the number of
// accounts touched.
func (s *AccountStore) ResetAllBalances(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET balance = 0 WHERE balance <> 0`)
	if err != nil {
		return 0, store.WrapError("accounts.reset_all", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, store.WrapError("accounts.reset_all", err)
	}
	return affected, nil
}

func (s *AccountStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.WrapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.WrapError(op, err)
	}
	if affected == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}
