// Package chat connects to Twitch chat over the IRC-over-WebSocket gateway
// and turns PRIVMSG traffic into message events for the command router.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultServer is Twitch's IRC-over-WebSocket gateway.
const DefaultServer = "wss://irc-ws.chat.twitch.tv:443"

const (
	reconnectMin = 2 * time.Second
	reconnectMax = 2 * time.Minute
	writeTimeout = 10 * time.Second
)

// Message is one chat line from a viewer.
type Message struct {
	Identity    string
	DisplayName string
	Text        string
	IsModerator bool
	IsOwner     bool
	// Eligible says the sender passes the bonus gate configured on the
	// client. The ledger grants the first-message and daily bonuses only
	// to eligible senders.
	Eligible bool
}

// Handler receives every parsed chat message.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
}

// Config carries the connection parameters for one channel.
type Config struct {
	Server  string
	Nick    string
	Token   string
	Channel string
	// BonusBadges gates point bonuses on chat badges: a sender is eligible
	// when any of their badges is named here. An empty list leaves the
	// gate open for everyone.
	BonusBadges []string
}

// Client maintains a Twitch chat connection, reconnecting with backoff
// until its context is cancelled.
type Client struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a Client. Run must be called to connect.
func NewClient(cfg Config) *Client {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	cfg.Channel = strings.ToLower(strings.TrimPrefix(cfg.Channel, "#"))
	return &Client{cfg: cfg}
}

// Run connects and feeds messages to handler until ctx is cancelled.
// Connection loss triggers reconnection with exponential backoff.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	backoff := reconnectMin
	for {
		err := c.session(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Dur("retry_in", backoff).Msg("Chat connection lost")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// session runs one connection from dial to failure.
func (c *Client) session(ctx context.Context, handler Handler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.Server, nil)
	if err != nil {
		return fmt.Errorf("failed to dial chat server: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	// Tags carry badges and display names; commands carry NOTICE and
	// reconnect hints.
	handshake := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS oauth:" + strings.TrimPrefix(c.cfg.Token, "oauth:"),
		"NICK " + c.cfg.Nick,
		"JOIN #" + c.cfg.Channel,
	}
	for _, raw := range handshake {
		if err := c.writeRaw(raw); err != nil {
			return err
		}
	}
	log.Info().Str("channel", c.cfg.Channel).Msg("Connected to chat")

	// The dialer honors ctx only during the handshake; close the socket on
	// cancellation to unblock ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("chat read failed: %w", err)
		}
		for _, raw := range strings.Split(string(data), "\r\n") {
			if raw == "" {
				continue
			}
			c.dispatch(ctx, handler, parseLine(raw))
		}
	}
}

func (c *Client) dispatch(ctx context.Context, handler Handler, l line) {
	switch l.Command {
	case "PING":
		if err := c.writeRaw("PONG :" + l.Trailing); err != nil {
			log.Error().Err(err).Msg("Failed to answer server ping")
		}
	case "RECONNECT":
		log.Warn().Msg("Server requested reconnect")
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	case "PRIVMSG":
		msg := c.toMessage(l)
		if msg.Identity == "" || msg.Text == "" {
			return
		}
		handler.HandleMessage(ctx, msg)
	case "NOTICE":
		log.Warn().Str("notice", l.Trailing).Msg("Server notice")
	}
}

func (c *Client) toMessage(l line) Message {
	identity := strings.ToLower(senderNick(l.Prefix))
	display := l.Tags["display-name"]
	if display == "" {
		display = identity
	}
	badges := l.Tags["badges"]
	return Message{
		Identity:    identity,
		DisplayName: display,
		Text:        strings.TrimSpace(l.Trailing),
		IsModerator: l.Tags["mod"] == "1" || strings.Contains(badges, "moderator/"),
		IsOwner:     strings.Contains(badges, "broadcaster/"),
		Eligible:    c.eligible(badges),
	}
}

// eligible matches the sender's badge names against the configured bonus
// gate. Badges arrive as "name/version" pairs separated by commas.
func (c *Client) eligible(badges string) bool {
	if len(c.cfg.BonusBadges) == 0 {
		return true
	}
	for _, badge := range strings.Split(badges, ",") {
		name, _, _ := strings.Cut(badge, "/")
		for _, want := range c.cfg.BonusBadges {
			if name == want {
				return true
			}
		}
	}
	return false
}

// Say sends a chat line to the joined channel.
func (c *Client) Say(text string) error {
	return c.writeRaw("PRIVMSG #" + c.cfg.Channel + " :" + text)
}

func (c *Client) writeRaw(raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("chat connection is down")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(raw+"\r\n")); err != nil {
		return fmt.Errorf("chat write failed: %w", err)
	}
	return nil
}
