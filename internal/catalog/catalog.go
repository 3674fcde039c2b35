// Package catalog defines the static reward catalog. Definitions are rules
// for purchase creation, not mutable state: prices and durations live here,
// acquired rewards live in the purchase store.
package catalog

import (
	"time"
)

// Kind identifies a reward in the catalog.
type Kind string

// Reward kinds available for purchase.
const (
	KindVIPHour       Kind = "vip_hour"
	KindStreamTitle   Kind = "stream_title"
	KindDiscordRole   Kind = "discord_role"
	KindStreamGame    Kind = "stream_game"
	KindChallenge     Kind = "challenge"
	KindDedication    Kind = "dedication"
	KindSingSong      Kind = "sing_song"
	KindCustomCommand Kind = "custom_command"
)

// Reward is one catalog entry.
type Reward struct {
	Kind        Kind
	Name        string
	ShortName   string
	Price       int64
	Duration    time.Duration
	Description string
}

// rewards maps every purchasable kind to its definition.
var rewards = map[Kind]Reward{
	KindVIPHour: {
		Kind:        KindVIPHour,
		Name:        "VIP for an hour",
		ShortName:   "VIP",
		Price:       800,
		Duration:    time.Hour,
		Description: "VIP status on the channel for 1 hour",
	},
	KindStreamTitle: {
		Kind:        KindStreamTitle,
		Name:        "Stream title change",
		ShortName:   "Title",
		Price:       1000,
		Duration:    30 * time.Minute,
		Description: "Change the stream title for 30 minutes",
	},
	KindDiscordRole: {
		Kind:        KindDiscordRole,
		Name:        "Discord VIP role",
		ShortName:   "Discord",
		Price:       800,
		Duration:    7 * 24 * time.Hour,
		Description: "VIP role on the Discord server for a week",
	},
	KindStreamGame: {
		Kind:        KindStreamGame,
		Name:        "Pick the stream game",
		ShortName:   "Game",
		Price:       2000,
		Duration:    4 * time.Hour,
		Description: "Choose the game for the whole stream",
	},
	KindChallenge: {
		Kind:        KindChallenge,
		Name:        "Streamer challenge",
		ShortName:   "Challenge",
		Price:       1500,
		Duration:    30 * time.Minute,
		Description: "Invent an in-game challenge for the streamer",
	},
	KindDedication: {
		Kind:        KindDedication,
		Name:        "On-stream dedication",
		ShortName:   "Dedication",
		Price:       800,
		Duration:    6 * time.Minute,
		Description: "A personal shout-out live on stream",
	},
	KindSingSong: {
		Kind:        KindSingSong,
		Name:        "Song performance",
		ShortName:   "Song",
		Price:       1100,
		Duration:    2 * time.Minute,
		Description: "The streamer sings a song of your choice",
	},
	KindCustomCommand: {
		Kind:        KindCustomCommand,
		Name:        "Custom command",
		ShortName:   "Command",
		Price:       3500,
		Duration:    7 * 24 * time.Hour,
		Description: "Your own bot command for a week",
	},
}

// displayOrder fixes the order rewards are listed and fingerprinted in.
var displayOrder = []Kind{
	KindVIPHour,
	KindStreamTitle,
	KindDiscordRole,
	KindStreamGame,
	KindChallenge,
	KindDedication,
	KindSingSong,
	KindCustomCommand,
}

// All returns every reward in display order.
func All() []Reward {
	out := make([]Reward, 0, len(displayOrder))
	for _, kind := range displayOrder {
		out = append(out, rewards[kind])
	}
	return out
}

// Get returns the definition for a kind.
func Get(kind Kind) (Reward, bool) {
	r, ok := rewards[kind]
	return r, ok
}

// Kinds returns every purchasable kind in display order.
func Kinds() []string {
	out := make([]string, 0, len(displayOrder))
	for _, kind := range displayOrder {
		out = append(out, string(kind))
	}
	return out
}

// FormatExpiry renders an expiry timestamp for chat. Rewards lasting a day
// or more show day and month; shorter rewards show only the clock time.
// The split is a domain contract, not cosmetics: "18:30" is unambiguous for
// a one-hour reward but useless for a week-long one.
func FormatExpiry(expiresAt time.Time, duration time.Duration) string {
	if duration >= 24*time.Hour {
		return expiresAt.Format("02.01 15:04")
	}
	return expiresAt.Format("15:04")
}
