package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/chat"
)

// handlePoints replies with the sender's balance and message count.
func (r *Router) handlePoints(ctx context.Context, msg chat.Message, _ []string) {
	account, err := r.ledger.GetOrCreate(ctx, msg.Identity)
	if err != nil {
		log.Error().Err(err).Str("identity", msg.Identity).Msg("Failed to load account")
		return
	}
	r.say(fmt.Sprintf("@%s you have %d points (%d messages)",
		msg.DisplayName, account.Balance, account.MessageCount))
}

// handleDaily claims the daily bonus for the sender.
func (r *Router) handleDaily(ctx context.Context, msg chat.Message, _ []string) {
	if !msg.Eligible {
		r.say(fmt.Sprintf("@%s the daily bonus is not unlocked for you yet 💜", msg.DisplayName))
		return
	}
	awarded, err := r.ledger.ClaimDaily(ctx, msg.Identity, msg.Eligible)
	if err != nil {
		log.Error().Err(err).Str("identity", msg.Identity).Msg("Failed to claim daily bonus")
		return
	}
	if awarded == 0 {
		r.say(fmt.Sprintf("@%s the daily bonus is once per 24 hours, come back later ⏰", msg.DisplayName))
		return
	}
	r.say(fmt.Sprintf("@%s +%d points, daily bonus claimed! 🎁", msg.DisplayName, awarded))
}

// handleTop lists the highest balances in chat.
func (r *Router) handleTop(ctx context.Context, msg chat.Message, _ []string) {
	entries, err := r.ledger.Top(ctx, r.topSize, r.excludedList())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return
	}
	if len(entries) == 0 {
		r.say("Nobody has any points yet 🤷")
		return
	}

	parts := make([]string, 0, len(entries))
	for i, entry := range entries {
		parts = append(parts, fmt.Sprintf("%d. %s (%d)", i+1, entry.Identity, entry.Balance))
	}
	r.say("🏆 Top points: " + strings.Join(parts, " | "))
}

// handleStats replies with the sender's game statistics.
func (r *Router) handleStats(ctx context.Context, msg chat.Message, _ []string) {
	records, err := r.ledger.GameStats(ctx, msg.Identity)
	if err != nil {
		log.Error().Err(err).Str("identity", msg.Identity).Msg("Failed to load game stats")
		return
	}
	if len(records) == 0 {
		r.say(fmt.Sprintf("@%s no games played yet", msg.DisplayName))
		return
	}

	parts := make([]string, 0, len(records))
	var wins, total int64
	for _, rec := range records {
		wins += rec.Wins
		total += rec.TotalPlayed
		parts = append(parts, fmt.Sprintf("%s %d/%d", rec.GameKind, rec.Wins, rec.TotalPlayed))
	}
	r.say(fmt.Sprintf("@%s games: %s | overall %d wins of %d",
		msg.DisplayName, strings.Join(parts, ", "), wins, total))
}
