// Package announce delivers published views to a Discord channel through an
// incoming webhook. Rendering lives here so the change detector stays free
// of presentation concerns.
package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Finalway1606/kranikbot-api/internal/publisher"
)

const requestTimeout = 10 * time.Second

// Webhook posts rendered views to a Discord webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook sink. An empty URL yields a disabled sink
// that drops every publication with a debug log.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: requestTimeout},
	}
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Footer      footer `json:"footer"`
}

type footer struct {
	Text string `json:"text"`
}

// Publish renders the view into a Discord embed and posts it. The
// idempotency key is carried in the embed footer so repeated deliveries of
// the same content are recognizable in the channel history.
func (w *Webhook) Publish(ctx context.Context, view publisher.View, idempotencyKey string) error {
	if w.url == "" {
		log.Debug().Str("view", view.Name()).Msg("Announce webhook not configured, publication dropped")
		return nil
	}

	e, err := render(view)
	if err != nil {
		return err
	}
	if len(idempotencyKey) >= 12 {
		e.Footer = footer{Text: "rev " + idempotencyKey[:12]}
	}

	body, err := json.Marshal(payload{Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func render(view publisher.View) (embed, error) {
	switch v := view.(type) {
	case *publisher.LeaderboardView:
		return renderLeaderboard(v), nil
	case *publisher.ShopView:
		return renderShop(v), nil
	default:
		return embed{}, fmt.Errorf("no renderer for view %s", view.Name())
	}
}

func renderLeaderboard(v *publisher.LeaderboardView) embed {
	var b strings.Builder
	for i, entry := range v.Entries {
		fmt.Fprintf(&b, "%d. **%s** — %d points (%d messages)\n",
			i+1, entry.Identity, entry.Balance, entry.MessageCount)
	}
	fmt.Fprintf(&b, "\nTracked chatters: %d, points in circulation: %d",
		v.TotalAccounts, v.TotalBalance)
	return embed{
		Title:       "Points leaderboard",
		Description: b.String(),
		Color:       0x9146FF,
	}
}

func renderShop(v *publisher.ShopView) embed {
	var b strings.Builder
	for _, r := range v.Rewards {
		fmt.Fprintf(&b, "**%s** — %d points (%s)\n%s\n\n",
			r.Name, r.Price, r.Duration, r.Description)
	}
	return embed{
		Title:       "Reward shop",
		Description: b.String(),
		Color:       0xFFD700,
	}
}
