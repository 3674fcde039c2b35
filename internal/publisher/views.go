package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/Finalway1606/kranikbot-api/internal/catalog"
	"github.com/Finalway1606/kranikbot-api/internal/model"
	"github.com/Finalway1606/kranikbot-api/internal/service"
)

// LeaderboardSize is the number of entries the published leaderboard carries.
const LeaderboardSize = 20

// LeaderboardView is the published leaderboard projection. Aggregate totals
// are part of the fingerprint so activity below the cutoff still counts as
// a change.
type LeaderboardView struct {
	Entries       []model.LeaderboardEntry `json:"entries"`
	TotalAccounts int64                    `json:"total_accounts"`
	TotalBalance  int64                    `json:"total_balance"`
}

func (LeaderboardView) Name() string { return "leaderboard" }

// ShopView is the published reward catalog projection.
type ShopView struct {
	Rewards []ShopReward `json:"rewards"`
}

// ShopReward is a single catalog row as it appears externally.
type ShopReward struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

func (ShopView) Name() string { return "shop" }

// BuildLeaderboardView assembles the current leaderboard projection from the
// ledger, excluding the given identities.
func BuildLeaderboardView(ctx context.Context, ledger *service.LedgerService, excluded []string) (*LeaderboardView, error) {
	entries, err := ledger.Top(ctx, LeaderboardSize, excluded)
	if err != nil {
		return nil, err
	}
	accounts, err := ledger.TotalAccounts(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := ledger.TotalBalance(ctx)
	if err != nil {
		return nil, err
	}
	return &LeaderboardView{
		Entries:       entries,
		TotalAccounts: accounts,
		TotalBalance:  balance,
	}, nil
}

// BuildShopView assembles the catalog projection in display order.
func BuildShopView() *ShopView {
	all := catalog.All()
	rewards := make([]ShopReward, 0, len(all))
	for _, r := range all {
		rewards = append(rewards, ShopReward{
			Kind:        string(r.Kind),
			Name:        r.Name,
			Price:       r.Price,
			Duration:    formatDuration(r.Duration),
			Description: r.Description,
		})
	}
	return &ShopView{Rewards: rewards}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
}
