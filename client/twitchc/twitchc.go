// Package twitchc adapts Twitch chat to the client capability surface.
//
// The adapter owns no connection. It writes outbound messages to the TMI
// send channel the connection loop drains, so reconnects never invalidate
// the client handle commands hold.
package twitchc

import (
	"context"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/time/rate"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/eminence"
)

// Config configures the adapter.
type Config struct {
	// Name is the bot's login name.
	Name string
	// Prefix is the client-level command prefix override, if any.
	Prefix string
	// Rate is the global outbound message limit. Required.
	Rate *rate.Limiter
	// Tiers maps user IDs to configured eminence. Broadcasters and
	// moderators resolve at least Admin and Moderator regardless.
	Tiers map[string]eminence.Tier
}

// Client is a Twitch chat client.
type Client struct {
	name   string
	prefix string
	limit  *rate.Limiter
	tiers  map[string]eminence.Tier
	send   chan<- *tmi.Message
}

var _ client.Client = (*Client)(nil)

// New returns an adapter writing to the given TMI send channel.
func New(cfg Config, send chan<- *tmi.Message) *Client {
	return &Client{
		name:   cfg.Name,
		prefix: cfg.Prefix,
		limit:  cfg.Rate,
		tiers:  cfg.Tiers,
		send:   send,
	}
}

// Type implements client.Client.
func (c *Client) Type() client.Type { return client.Twitch }

// Send sends a message to a channel after waiting for the global rate
// limit.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	if err := c.limit.Wait(ctx); err != nil {
		return err
	}
	msg := tmi.Privmsg(channelID, text)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.send <- msg:
		return nil
	}
}

// Whisper sends to a user's own channel. Twitch retired whispers for
// ordinary bots, so this is the closest delivery that still works.
func (c *Client) Whisper(ctx context.Context, userID, text string) error {
	ch := userID
	if !strings.HasPrefix(ch, "#") {
		ch = "#" + ch
	}
	return c.Send(ctx, ch, "@"+strings.TrimPrefix(userID, "#")+" "+text)
}

// CommandPrefix implements client.Client.
func (c *Client) CommandPrefix() string { return c.prefix }

// TypeFor implements client.Client. Twitch has no typing indicator.
func (c *Client) TypeFor(ctx context.Context, channelID string, d time.Duration) {}

// ResolveTier resolves a chatter's eminence: configured tier first, then
// Admin for the broadcaster, then Moderator when the message carries the
// moderator badge.
func (c *Client) ResolveTier(ctx context.Context, r *client.Resonance) (eminence.Tier, error) {
	t := eminence.None
	if cfg, ok := c.tiers[r.AuthorID]; ok {
		t = cfg
	}
	if strings.EqualFold("#"+r.AuthorName, r.ChannelID) && t < eminence.Admin {
		t = eminence.Admin
	}
	if r.IsModerator && t < eminence.Moderator {
		t = eminence.Moderator
	}
	return t, nil
}

// Resonance converts a TMI PRIVMSG to the core's message form.
func Resonance(msg *tmi.Message) *client.Resonance {
	id, _ := msg.Tag("id")
	uid, _ := msg.Tag("user-id")
	name, _ := msg.Tag("display-name")
	if name == "" {
		name = msg.Nick
	}
	ts, _ := msg.Tag("tmi-sent-ts")
	return &client.Resonance{
		ID:          id,
		AuthorID:    uid,
		AuthorName:  name,
		ChannelID:   msg.To(),
		Text:        msg.Trailing,
		Client:      client.Twitch,
		IsModerator: moderator(msg),
		Timestamp:   parseMillis(ts),
	}
}

func moderator(m *tmi.Message) bool {
	t, _ := m.Tag("mod")
	if t == "1" {
		return true
	}
	// The broadcaster gets mod=0, but their nick matches the channel name.
	if to := m.To(); len(to) > 1 && to[0] == '#' && to[1:] == m.Nick {
		return true
	}
	return false
}

func parseMillis(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
