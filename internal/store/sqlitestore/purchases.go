package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// PurchaseStore is the SQLite implementation of store.PurchaseStore.
type PurchaseStore struct {
	db *sql.DB
}

// NewPurchaseStore creates a PurchaseStore on an opened shop database.
func NewPurchaseStore(db *sql.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

// Insert stores a new purchase and returns its id.
func (s *PurchaseStore) Insert(ctx context.Context, p *model.Purchase) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (identity, reward_kind, purchased_at, expires_at, active, used)
		VALUES (?, ?, ?, ?, 1, 0)`,
		p.Identity, p.RewardKind, p.PurchasedAt, p.ExpiresAt)
	if err != nil {
		return 0, store.WrapError("purchases.insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, store.WrapError("purchases.insert", err)
	}
	return id, nil
}

// HasActive reports whether identity holds an active, unexpired purchase of
// the given kind at instant now.
func (s *PurchaseStore) HasActive(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchases
		WHERE identity = ? AND reward_kind = ? AND active = 1 AND expires_at > ?`,
		identity, rewardKind, now).Scan(&count)
	if err != nil {
		return false, store.WrapError("purchases.has_active", err)
	}
	return count > 0, nil
}

// ActiveFor returns identity's active, unexpired purchases ascending by expiry.
func (s *PurchaseStore) ActiveFor(ctx context.Context, identity string, now time.Time) ([]model.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, reward_kind, purchased_at, expires_at, active, used
		FROM purchases
		WHERE identity = ? AND active = 1 AND expires_at > ?
		ORDER BY expires_at ASC`,
		identity, now)
	if err != nil {
		return nil, store.WrapError("purchases.active_for", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.Identity, &p.RewardKind, &p.PurchasedAt, &p.ExpiresAt, &p.Active, &p.Used); err != nil {
			return nil, store.WrapError("purchases.active_for", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.WrapError("purchases.active_for", err)
	}
	return purchases, nil
}

// DeactivateExpired flips active=false on every purchase expired at now.
func (s *PurchaseStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE purchases SET active = 0 WHERE active = 1 AND expires_at <= ?`, now)
	if err != nil {
		return 0, store.WrapError("purchases.deactivate_expired", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, store.WrapError("purchases.deactivate_expired", err)
	}
	return affected, nil
}

// Deactivate revokes identity's active purchases of the given kind.
func (s *PurchaseStore) Deactivate(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE purchases SET active = 0
		WHERE identity = ? AND reward_kind = ? AND active = 1 AND expires_at > ?`,
		identity, rewardKind, now)
	if err != nil {
		return false, store.WrapError("purchases.deactivate", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, store.WrapError("purchases.deactivate", err)
	}
	return affected > 0, nil
}

// MarkUsed flips the used flag on identity's active purchase of the kind.
func (s *PurchaseStore) MarkUsed(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE purchases SET used = 1
		WHERE identity = ? AND reward_kind = ? AND active = 1 AND expires_at > ?`,
		identity, rewardKind, now)
	if err != nil {
		return false, store.WrapError("purchases.mark_used", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, store.WrapError("purchases.mark_used", err)
	}
	return affected > 0, nil
}

// DeactivateAll flips active=false on every active purchase.
func (s *PurchaseStore) DeactivateAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE purchases SET active = 0 WHERE active = 1`)
	if err != nil {
		return 0, store.WrapError("purchases.deactivate_all", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, store.WrapError("purchases.deactivate_all", err)
	}
	return affected, nil
}
