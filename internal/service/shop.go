package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/catalog"
	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/pkg/lock"
	"github.com/Finalway1606/kranikbot-api/internal/store"
)

// PurchaseResult describes a successfully created purchase.
type PurchaseResult struct {
	Purchase model.Purchase
	Reward   catalog.Reward
	// ExpiresText is the chat-facing expiry, formatted per the reward's
	// duration magnitude (see catalog.FormatExpiry).
	ExpiresText string
	// Free is true for privileged purchases and administrative grants.
	Free bool
}

// ShopService owns reward purchases: catalog validation, balance debits,
// duplicate caps, expiry sweeps and revocations. Mutations take the ledger
// lock (where a debit is involved) and then the inventory lock, always in
// that order.
type ShopService struct {
	accounts  store.AccountStore
	purchases store.PurchaseStore
	guard     *lock.Guard
	snapshots Snapshotter
}

// NewShopService creates a ShopService.
func NewShopService(accounts store.AccountStore, purchases store.PurchaseStore, guard *lock.Guard, snapshots Snapshotter) *ShopService {
	if snapshots == nil {
		snapshots = NopSnapshotter{}
	}
	return &ShopService{
		accounts:  accounts,
		purchases: purchases,
		guard:     guard,
		snapshots: snapshots,
	}
}

// Purchase buys rewardKind for identity. Privileged identities skip both the
// duplicate cap and the debit. On success the price has been debited and one
// active purchase row exists.
func (s *ShopService) Purchase(ctx context.Context, identity, rewardKind string, privileged bool) (*PurchaseResult, error) {
	reward, ok := catalog.Get(catalog.Kind(rewardKind))
	if !ok {
		return nil, ErrUnknownReward
	}
	identity = Normalize(identity)

	var result *PurchaseResult
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		return s.guard.With(ctx, lock.KeyInventory, func() error {
			now := time.Now()

			if !privileged {
				active, err := s.purchases.HasActive(ctx, identity, rewardKind, now)
				if err != nil {
					return err
				}
				if active {
					return ErrDuplicateActive
				}
				account, err := s.accounts.Get(ctx, identity)
				if errors.Is(err, store.ErrAccountNotFound) {
					// An identity never seen in chat holds zero points.
					return ErrInsufficientBalance
				}
				if err != nil {
					return err
				}
				if account.Balance < reward.Price {
					return ErrInsufficientBalance
				}
				if err := s.accounts.DeductBalance(ctx, identity, reward.Price, now); err != nil {
					return err
				}
			}

			purchase, err := s.insert(ctx, identity, reward, now)
			if err != nil {
				if !privileged {
					// Compensate the debit so a storage failure cannot leave
					// the account poorer with no reward to show for it.
					if creditErr := s.accounts.AddBalance(ctx, identity, reward.Price, now); creditErr != nil {
						log.Error().Err(creditErr).
							Str("identity", identity).
							Str("reward", rewardKind).
							Msg("Failed to re-credit after purchase insert failure")
					}
				}
				return err
			}
			result = &PurchaseResult{
				Purchase:    *purchase,
				Reward:      reward,
				ExpiresText: catalog.FormatExpiry(purchase.ExpiresAt, reward.Duration),
				Free:        privileged,
			}
			return nil
		})
	})
	return result, err
}

// Grant creates a purchase for identity at no cost (administrative). The
// duplicate cap still applies.
func (s *ShopService) Grant(ctx context.Context, identity, rewardKind string) (*PurchaseResult, error) {
	reward, ok := catalog.Get(catalog.Kind(rewardKind))
	if !ok {
		return nil, ErrUnknownReward
	}
	identity = Normalize(identity)

	var result *PurchaseResult
	err := s.guard.With(ctx, lock.KeyInventory, func() error {
		now := time.Now()
		active, err := s.purchases.HasActive(ctx, identity, rewardKind, now)
		if err != nil {
			return err
		}
		if active {
			return ErrDuplicateActive
		}
		purchase, err := s.insert(ctx, identity, reward, now)
		if err != nil {
			return err
		}
		result = &PurchaseResult{
			Purchase:    *purchase,
			Reward:      reward,
			ExpiresText: catalog.FormatExpiry(purchase.ExpiresAt, reward.Duration),
			Free:        true,
		}
		return nil
	})
	return result, err
}

func (s *ShopService) insert(ctx context.Context, identity string, reward catalog.Reward, now time.Time) (*model.Purchase, error) {
	purchase := &model.Purchase{
		Identity:    identity,
		RewardKind:  string(reward.Kind),
		PurchasedAt: now,
		ExpiresAt:   now.Add(reward.Duration),
		Active:      true,
	}
	id, err := s.purchases.Insert(ctx, purchase)
	if err != nil {
		return nil, err
	}
	purchase.ID = id
	return purchase, nil
}

// HasActive reports whether identity holds an active, unexpired purchase of
// rewardKind.
func (s *ShopService) HasActive(ctx context.Context, identity, rewardKind string) (bool, error) {
	identity = Normalize(identity)
	var active bool
	err := s.guard.With(ctx, lock.KeyInventory, func() error {
		var err error
		active, err = s.purchases.HasActive(ctx, identity, rewardKind, time.Now())
		return err
	})
	return active, err
}

// Inventory returns identity's active purchases ascending by expiry.
func (s *ShopService) Inventory(ctx context.Context, identity string) ([]model.Purchase, error) {
	identity = Normalize(identity)
	var purchases []model.Purchase
	err := s.guard.With(ctx, lock.KeyInventory, func() error {
		var err error
		purchases, err = s.purchases.ActiveFor(ctx, identity, time.Now())
		return err
	})
	return purchases, err
}

// SweepExpired deactivates every purchase whose expiry has passed. Running
// it again has no additional effect.
func (s *ShopService) SweepExpired(ctx context.Context) error {
	return s.guard.With(ctx, lock.KeyInventory, func() error {
		swept, err := s.purchases.DeactivateExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		if swept > 0 {
			log.Info().Int64("purchases", swept).Msg("Expired rewards swept")
		}
		return nil
	})
}

// Revoke deactivates one active purchase of rewardKind for identity and
// reports whether one was found. Unknown kinds fail with ErrUnknownReward.
func (s *ShopService) Revoke(ctx context.Context, identity, rewardKind string) (bool, error) {
	if _, ok := catalog.Get(catalog.Kind(rewardKind)); !ok {
		return false, ErrUnknownReward
	}
	identity = Normalize(identity)
	var revoked bool
	err := s.guard.With(ctx, lock.KeyInventory, func() error {
		var err error
		revoked, err = s.purchases.Deactivate(ctx, identity, rewardKind, time.Now())
		return err
	})
	return revoked, err
}

// Use marks identity's active purchase of rewardKind as redeemed. The flag
// is one-way; using an already-used reward is a no-op that still reports
// success.
func (s *ShopService) Use(ctx context.Context, identity, rewardKind string) (bool, error) {
	if _, ok := catalog.Get(catalog.Kind(rewardKind)); !ok {
		return false, ErrUnknownReward
	}
	identity = Normalize(identity)
	var used bool
	err := s.guard.With(ctx, lock.KeyInventory, func() error {
		var err error
		used, err = s.purchases.MarkUsed(ctx, identity, rewardKind, time.Now())
		return err
	})
	return used, err
}

// ResetAll deactivates every active purchase after taking a backup snapshot,
// returning how many were deactivated. The snapshot covers the shared
// database file, so both locks are held, ledger first.
func (s *ShopService) ResetAll(ctx context.Context) (int64, error) {
	var affected int64
	err := s.guard.With(ctx, lock.KeyLedger, func() error {
		return s.guard.With(ctx, lock.KeyInventory, func() error {
			if err := s.snapshots.Snapshot("reset_all_rewards"); err != nil {
				return err
			}
			var err error
			affected, err = s.purchases.DeactivateAll(ctx)
			return err
		})
	})
	if err == nil {
		log.Warn().Int64("purchases", affected).Msg("All active rewards reset")
	}
	return affected, err
}

// DescribePurchase renders the confirmation line for a completed purchase.
func DescribePurchase(result *PurchaseResult) string {
	if result.Free {
		return fmt.Sprintf("@%s received: %s for free! Active until: %s",
			result.Purchase.Identity, result.Reward.Name, result.ExpiresText)
	}
	return fmt.Sprintf("@%s bought: %s for %d points! Active until: %s",
		result.Purchase.Identity, result.Reward.Name, result.Reward.Price, result.ExpiresText)
}
