package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/chat"
	"github.com/Finalway1606/kranikbot-api/internal/publisher"
	"github.com/Finalway1606/kranikbot-api/internal/service"
)

// handleGrant gives a reward to a user without charging them.
func (r *Router) handleGrant(ctx context.Context, msg chat.Message, args []string) {
	target, ok := targetIdentity(args)
	if !ok || len(args) < 2 {
		r.say(fmt.Sprintf("@%s usage: !grant <user> <reward>", msg.DisplayName))
		return
	}

	result, err := r.shop.Grant(ctx, target, strings.ToLower(args[1]))
	switch {
	case errors.Is(err, service.ErrUnknownReward):
		r.say(fmt.Sprintf("@%s there is no such reward, see !shop", msg.DisplayName))
		return
	case errors.Is(err, service.ErrDuplicateActive):
		r.say(fmt.Sprintf("@%s %s already has this reward active", msg.DisplayName, target))
		return
	case err != nil:
		log.Error().Err(err).Str("target", target).Msg("Grant failed")
		return
	}
	r.say(service.DescribePurchase(result))
}

// handleRevoke deactivates a user's reward.
func (r *Router) handleRevoke(ctx context.Context, msg chat.Message, args []string) {
	target, ok := targetIdentity(args)
	if !ok || len(args) < 2 {
		r.say(fmt.Sprintf("@%s usage: !revoke <user> <reward>", msg.DisplayName))
		return
	}

	kind := strings.ToLower(args[1])
	revoked, err := r.shop.Revoke(ctx, target, kind)
	if errors.Is(err, service.ErrUnknownReward) {
		r.say(fmt.Sprintf("@%s there is no such reward, see !shop", msg.DisplayName))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("target", target).Msg("Revoke failed")
		return
	}
	if !revoked {
		r.say(fmt.Sprintf("@%s %s has no active %s", msg.DisplayName, target, kind))
		return
	}
	r.say(fmt.Sprintf("Reward %s revoked from @%s", kind, target))
}

// handleSetPoints sets a user's balance to an absolute value.
func (r *Router) handleSetPoints(ctx context.Context, msg chat.Message, args []string) {
	target, amount, ok := targetAndAmount(args)
	if !ok {
		r.say(fmt.Sprintf("@%s usage: !setpoints <user> <amount>", msg.DisplayName))
		return
	}
	if amount < 0 {
		amount = 0
	}
	if err := r.ledger.SetBalance(ctx, target, amount); err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to set balance")
		return
	}
	r.say(fmt.Sprintf("@%s now has %d points", target, amount))
}

// handleAddPoints credits (or with a negative amount, debits) a user.
func (r *Router) handleAddPoints(ctx context.Context, msg chat.Message, args []string) {
	target, amount, ok := targetAndAmount(args)
	if !ok || amount == 0 {
		r.say(fmt.Sprintf("@%s usage: !addpoints <user> <amount>", msg.DisplayName))
		return
	}

	var err error
	if amount > 0 {
		err = r.ledger.Credit(ctx, target, amount, true)
	} else {
		err = r.ledger.Debit(ctx, target, -amount)
	}
	if err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to adjust balance")
		return
	}

	account, err := r.ledger.GetOrCreate(ctx, target)
	if err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to load account")
		return
	}
	r.say(fmt.Sprintf("@%s now has %d points", target, account.Balance))
}

// handleResetPoints zeroes a single user's balance.
func (r *Router) handleResetPoints(ctx context.Context, msg chat.Message, args []string) {
	target, ok := targetIdentity(args)
	if !ok {
		r.say(fmt.Sprintf("@%s usage: !resetpoints <user>", msg.DisplayName))
		return
	}
	if err := r.ledger.SetBalance(ctx, target, 0); err != nil {
		log.Error().Err(err).Str("target", target).Msg("Failed to reset balance")
		return
	}
	r.say(fmt.Sprintf("Points of @%s reset to 0", target))
}

// handleResetAll zeroes every balance and deactivates every reward. A
// snapshot is taken before either store is touched.
func (r *Router) handleResetAll(ctx context.Context, msg chat.Message, args []string) {
	if len(args) == 0 || args[0] != "confirm" {
		r.say(fmt.Sprintf("@%s this wipes every balance and reward, repeat as !resetall confirm", msg.DisplayName))
		return
	}

	accounts, err := r.ledger.ResetAllBalances(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reset balances")
		return
	}
	rewards, err := r.shop.ResetAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reset rewards")
		return
	}
	r.say(fmt.Sprintf("Season reset: %d balances zeroed, %d rewards deactivated 🔄", accounts, rewards))
}

// handleForceSync republishes the leaderboard and shop views regardless of
// change detection state.
func (r *Router) handleForceSync(ctx context.Context, msg chat.Message, args []string) {
	// "keep" leaves the stored fingerprints alone so the automatic cycle
	// still reports the pending change afterwards.
	updateFingerprint := len(args) == 0 || args[0] != "keep"

	view, err := publisher.BuildLeaderboardView(ctx, r.ledger, r.excludedList())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build leaderboard view")
		return
	}
	if err := r.pub.Force(ctx, view, updateFingerprint); err != nil {
		log.Error().Err(err).Msg("Failed to force leaderboard sync")
		r.say(fmt.Sprintf("@%s leaderboard sync failed, check the logs", msg.DisplayName))
		return
	}
	if err := r.pub.Force(ctx, publisher.BuildShopView(), updateFingerprint); err != nil {
		log.Error().Err(err).Msg("Failed to force shop sync")
		r.say(fmt.Sprintf("@%s shop sync failed, check the logs", msg.DisplayName))
		return
	}
	r.say(fmt.Sprintf("@%s leaderboard and shop republished ✅", msg.DisplayName))
}

// targetAndAmount parses "<user> <amount>" arguments.
func targetAndAmount(args []string) (string, int64, bool) {
	target, ok := targetIdentity(args)
	if !ok || len(args) < 2 {
		return "", 0, false
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return target, amount, true
}
