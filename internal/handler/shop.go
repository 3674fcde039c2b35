package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/catalog"
	"github.com/Finalway1606/kranikbot-api/internal/chat"
	"github.com/Finalway1606/kranikbot-api/internal/service"
)

// handleShop lists the purchasable rewards.
func (r *Router) handleShop(_ context.Context, _ chat.Message, _ []string) {
	parts := make([]string, 0, len(catalog.All()))
	for _, reward := range catalog.All() {
		parts = append(parts, fmt.Sprintf("%s (%s) - %d", reward.ShortName, reward.Kind, reward.Price))
	}
	r.say("🛒 Shop: " + strings.Join(parts, " | ") + " / buy with !buy <reward>")
}

// handleBuy purchases a reward for the sender. Privileged senders buy for
// free and bypass the one-active-copy cap.
func (r *Router) handleBuy(ctx context.Context, msg chat.Message, args []string) {
	if len(args) == 0 {
		r.say(fmt.Sprintf("@%s usage: !buy <reward>, see !shop", msg.DisplayName))
		return
	}

	result, err := r.shop.Purchase(ctx, msg.Identity, strings.ToLower(args[0]), r.isPrivileged(msg))
	switch {
	case errors.Is(err, service.ErrUnknownReward):
		r.say(fmt.Sprintf("@%s there is no such reward, see !shop", msg.DisplayName))
		return
	case errors.Is(err, service.ErrDuplicateActive):
		r.say(fmt.Sprintf("@%s you already have this reward active", msg.DisplayName))
		return
	case errors.Is(err, service.ErrInsufficientBalance):
		r.say(fmt.Sprintf("@%s not enough points for this reward 💸", msg.DisplayName))
		return
	case err != nil:
		log.Error().Err(err).Str("identity", msg.Identity).Msg("Purchase failed")
		return
	}
	r.say(service.DescribePurchase(result))
}

// handleInventory lists the sender's active rewards with expiry times.
func (r *Router) handleInventory(ctx context.Context, msg chat.Message, _ []string) {
	purchases, err := r.shop.Inventory(ctx, msg.Identity)
	if err != nil {
		log.Error().Err(err).Str("identity", msg.Identity).Msg("Failed to load inventory")
		return
	}
	if len(purchases) == 0 {
		r.say(fmt.Sprintf("@%s your inventory is empty, see !shop", msg.DisplayName))
		return
	}

	parts := make([]string, 0, len(purchases))
	for _, p := range purchases {
		reward, ok := catalog.Get(catalog.Kind(p.RewardKind))
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s until %s",
			reward.ShortName, catalog.FormatExpiry(p.ExpiresAt, reward.Duration)))
	}
	r.say(fmt.Sprintf("@%s inventory: %s", msg.DisplayName, strings.Join(parts, " | ")))
}

// handleUse consumes one of the sender's active rewards.
func (r *Router) handleUse(ctx context.Context, msg chat.Message, args []string) {
	if len(args) == 0 {
		r.say(fmt.Sprintf("@%s usage: !use <reward>", msg.DisplayName))
		return
	}

	kind := strings.ToLower(args[0])
	used, err := r.shop.Use(ctx, msg.Identity, kind)
	if errors.Is(err, service.ErrUnknownReward) {
		r.say(fmt.Sprintf("@%s there is no such reward, see !shop", msg.DisplayName))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("identity", msg.Identity).Msg("Failed to use reward")
		return
	}
	if !used {
		r.say(fmt.Sprintf("@%s you have no active %s to use", msg.DisplayName, kind))
		return
	}

	reward, _ := catalog.Get(catalog.Kind(kind))
	r.say(fmt.Sprintf("@%s used %s at %s ✨",
		msg.DisplayName, reward.Name, time.Now().Format("15:04")))
}
