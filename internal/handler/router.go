// Package handler routes chat commands to the ledger and shop services and
// accrues passive activity for every eligible chat line.
package handler

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/chat"
	"github.com/Finalway1606/kranikbot-api/internal/publisher"
	"github.com/Finalway1606/kranikbot-api/internal/service"
)

// Speaker sends a line to the chat channel.
type Speaker interface {
	Say(text string) error
}

// Config carries the router's policy knobs.
type Config struct {
	// Owner is the broadcaster's identity; always privileged.
	Owner string
	// Excluded identities neither accrue points nor appear on the
	// leaderboard. Service bots, mostly.
	Excluded []string
	// LeaderboardSize caps the !top listing.
	LeaderboardSize int
}

// Router implements chat.Handler and dispatches commands.
type Router struct {
	ledger   *service.LedgerService
	shop     *service.ShopService
	pub      *publisher.Publisher
	speaker  Speaker
	owner    string
	excluded map[string]bool
	topSize  int

	commands map[string]func(ctx context.Context, msg chat.Message, args []string)
}

// NewRouter wires a Router.
func NewRouter(ledger *service.LedgerService, shop *service.ShopService, pub *publisher.Publisher, speaker Speaker, cfg Config) *Router {
	excluded := make(map[string]bool, len(cfg.Excluded))
	for _, id := range cfg.Excluded {
		excluded[service.Normalize(id)] = true
	}
	topSize := cfg.LeaderboardSize
	if topSize <= 0 {
		topSize = 5
	}

	r := &Router{
		ledger:   ledger,
		shop:     shop,
		pub:      pub,
		speaker:  speaker,
		owner:    service.Normalize(cfg.Owner),
		excluded: excluded,
		topSize:  topSize,
	}
	r.commands = map[string]func(ctx context.Context, msg chat.Message, args []string){
		"!points":      r.handlePoints,
		"!daily":       r.handleDaily,
		"!top":         r.handleTop,
		"!stats":       r.handleStats,
		"!shop":        r.handleShop,
		"!buy":         r.handleBuy,
		"!inventory":   r.handleInventory,
		"!use":         r.handleUse,
		"!grant":       r.adminOnly(r.handleGrant),
		"!revoke":      r.adminOnly(r.handleRevoke),
		"!setpoints":   r.adminOnly(r.handleSetPoints),
		"!addpoints":   r.adminOnly(r.handleAddPoints),
		"!resetpoints": r.adminOnly(r.handleResetPoints),
		"!resetall":    r.adminOnly(r.handleResetAll),
		"!forcesync":   r.adminOnly(r.handleForceSync),
	}
	return r
}

// HandleMessage accrues activity for the sender and dispatches the line if
// it is a command. Excluded identities are dropped entirely.
func (r *Router) HandleMessage(ctx context.Context, msg chat.Message) {
	identity := service.Normalize(msg.Identity)
	if r.excluded[identity] {
		return
	}

	if _, err := r.ledger.RecordMessage(ctx, identity, msg.Eligible); err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Failed to record chat activity")
	}

	if !strings.HasPrefix(msg.Text, "!") {
		return
	}
	fields := strings.Fields(msg.Text)
	command := strings.ToLower(fields[0])
	handle, ok := r.commands[command]
	if !ok {
		return
	}
	handle(ctx, msg, fields[1:])
}

// isPrivileged reports whether the sender may run admin commands.
func (r *Router) isPrivileged(msg chat.Message) bool {
	return msg.IsOwner || msg.IsModerator || service.Normalize(msg.Identity) == r.owner
}

// adminOnly wraps a handler with a privilege check. Unprivileged calls are
// silently ignored so the bot does not leak which commands exist.
func (r *Router) adminOnly(fn func(ctx context.Context, msg chat.Message, args []string)) func(ctx context.Context, msg chat.Message, args []string) {
	return func(ctx context.Context, msg chat.Message, args []string) {
		if !r.isPrivileged(msg) {
			return
		}
		fn(ctx, msg, args)
	}
}

func (r *Router) say(text string) {
	if err := r.speaker.Say(text); err != nil {
		log.Error().Err(err).Msg("Failed to send chat reply")
	}
}

// targetIdentity resolves the first argument as a user reference, accepting
// an optional leading @.
func targetIdentity(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	identity := service.Normalize(strings.TrimPrefix(args[0], "@"))
	if identity == "" {
		return "", false
	}
	return identity, true
}

// excludedList returns the excluded identities for leaderboard queries.
func (r *Router) excludedList() []string {
	out := make([]string, 0, len(r.excluded))
	for id := range r.excluded {
		out = append(out, id)
	}
	return out
}
