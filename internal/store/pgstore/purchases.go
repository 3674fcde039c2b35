package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// PurchaseStore is the PostgreSQL implementation of store.PurchaseStore.
type PurchaseStore struct {
	pool *pgxpool.Pool
}

// NewPurchaseStore creates a PurchaseStore on a connection pool.
func NewPurchaseStore(pool *pgxpool.Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

// Insert stores a new purchase and returns its id.
func (s *PurchaseStore) Insert(ctx context.Context, p *model.Purchase) (int64, error) {
	const query = `
		INSERT INTO purchases (identity, reward_kind, purchased_at, expires_at, active, used)
		VALUES ($1, $2, $3, $4, TRUE, FALSE)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query, p.Identity, p.RewardKind, p.PurchasedAt, p.ExpiresAt).Scan(&id)
	if err != nil {
		return 0, store.WrapError("purchases.insert", err)
	}
	return id, nil
}

// HasActive reports whether identity holds an active, unexpired purchase of
// the given kind at instant now.
func (s *PurchaseStore) HasActive(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM purchases
			WHERE identity = $1 AND reward_kind = $2 AND active AND expires_at > $3
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, identity, rewardKind, now).Scan(&exists); err != nil {
		return false, store.WrapError("purchases.has_active", err)
	}
	return exists, nil
}

// ActiveFor returns identity's active, unexpired purchases ascending by expiry.
func (s *PurchaseStore) ActiveFor(ctx context.Context, identity string, now time.Time) ([]model.Purchase, error) {
	const query = `
		SELECT id, identity, reward_kind, purchased_at, expires_at, active, used
		FROM purchases
		WHERE identity = $1 AND active AND expires_at > $2
		ORDER BY expires_at ASC`

	rows, err := s.pool.Query(ctx, query, identity, now)
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
	res, err := s.pool.Exec(ctx, `
		UPDATE purchases SET active = FALSE WHERE active AND expires_at <= $1`, now)
	if err != nil {
		return 0, store.WrapError("purchases.deactivate_expired", err)
	}
	return res.RowsAffected(), nil
}

// Deactivate revokes identity's active purchases of the given kind.
func (s *PurchaseStore) Deactivate(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error) {
	res, err := s.pool.Exec(ctx, `
		UPDATE purchases SET active = FALSE
		WHERE identity = $1 AND reward_kind = $2 AND active AND expires_at > $3`,
		identity, rewardKind, now)
	if err != nil {
		return false, store.WrapError("purchases.deactivate", err)
	}
	return res.RowsAffected() > 0, nil
}

// MarkUsed flips the used flag on identity's active purchase of the kind.
func (s *PurchaseStore) MarkUsed(ctx context.Context, identity, rewardKind string, now time.Time) (bool, error) {
	res, err := s.pool.Exec(ctx, `
		UPDATE purchases SET used = TRUE
		WHERE identity = $1 AND reward_kind = $2 AND active AND expires_at > $3`,
		identity, rewardKind, now)
	if err != nil {
		return false, store.WrapError("purchases.mark_used", err)
	}
	return res.RowsAffected() > 0, nil
}

// DeactivateAll flips active=false on every active purchase.
func (s *PurchaseStore) DeactivateAll(ctx context.Context) (int64, error) {
	res, err := s.pool.Exec(ctx, `UPDATE purchases SET active = FALSE WHERE active`)
	if err != nil {
		return 0, store.WrapError("purchases.deactivate_all", err)
	}
	return res.RowsAffected(), nil
}
