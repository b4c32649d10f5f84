// Package discordc adapts Discord to the client capability surface.
package discordc

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aigachu/lavenza/authorizer"
	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/eminence"
)

// Config configures the adapter.
type Config struct {
	// Prefix is the client-level command prefix override, if any.
	Prefix string
	// Tiers maps user IDs to configured eminence. Users holding manage
	// or administrator permissions resolve at least Moderator and Admin
	// regardless.
	Tiers map[string]eminence.Tier
}

// Client is a Discord client over a discordgo session.
type Client struct {
	session *discordgo.Session
	prefix  string
	tiers   map[string]eminence.Tier
}

var (
	_ client.Client        = (*Client)(nil)
	_ authorizer.Warranter = (*Client)(nil)
)

// New returns an adapter over the given session. The session is expected
// to be configured with at least the guild and guild message intents and
// opened by the caller.
func New(session *discordgo.Session, cfg Config) *Client {
	return &Client{
		session: session,
		prefix:  cfg.Prefix,
		tiers:   cfg.Tiers,
	}
}

// Type implements client.Client.
func (c *Client) Type() client.Type { return client.Discord }

// Send sends a message to a channel. Mentions in the text are never
// expanded.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	msg := &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	_, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("couldn't send to %s: %w", channelID, err)
	}
	return nil
}

// Whisper sends a message to a user's DM channel, creating it if needed.
func (c *Client) Whisper(ctx context.Context, userID, text string) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("couldn't open DM with %s: %w", userID, err)
	}
	return c.Send(ctx, ch.ID, text)
}

// CommandPrefix implements client.Client.
func (c *Client) CommandPrefix() string { return c.prefix }

// TypeFor shows the typing indicator in a channel for roughly the given
// duration. Discord expires each indicator after about ten seconds, so
// longer durations refresh it.
func (c *Client) TypeFor(ctx context.Context, channelID string, d time.Duration) {
	const expiry = 8 * time.Second
	deadline := time.Now().Add(d)
	for {
		if err := c.session.ChannelTyping(channelID, discordgo.WithContext(ctx)); err != nil {
			return
		}
		rest := time.Until(deadline)
		if rest <= 0 {
			return
		}
		if rest > expiry {
			rest = expiry
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(rest):
		}
	}
}

// ResolveTier resolves a member's eminence: configured tier first, then
// Admin for administrators, then Moderator for members who can manage
// messages in the channel.
func (c *Client) ResolveTier(ctx context.Context, r *client.Resonance) (eminence.Tier, error) {
	t := eminence.None
	if cfg, ok := c.tiers[r.AuthorID]; ok {
		t = cfg
	}
	perms, err := c.session.State.UserChannelPermissions(r.AuthorID, r.ChannelID)
	if err != nil {
		// DMs and uncached channels carry no permissions. The message's
		// own moderator flag still applies below.
		perms = 0
	}
	switch {
	case perms&discordgo.PermissionAdministrator != 0:
		if t < eminence.Admin {
			t = eminence.Admin
		}
	case perms&discordgo.PermissionManageMessages != 0:
		if t < eminence.Moderator {
			t = eminence.Moderator
		}
	}
	if r.IsModerator && t < eminence.Moderator {
		t = eminence.Moderator
	}
	return t, nil
}

// Warrant is the Discord-specific final authorization check. The channel
// blacklist names guild IDs here, so a command can be denied for a whole
// server rather than one channel at a time.
func (c *Client) Warrant(ctx context.Context, d *command.Descriptor, res *client.Resonance) (bool, error) {
	if res.GuildID != "" && slices.Contains(d.ChannelBlacklist(client.Discord), res.GuildID) {
		return false, nil
	}
	return true, nil
}

// Resonance converts a message create event to the core's message form.
// It returns nil for messages sent by bots, which the core never hears.
func Resonance(event *discordgo.MessageCreate) *client.Resonance {
	if event.Author == nil || event.Author.Bot {
		return nil
	}
	name := event.Author.Username
	if event.Member != nil && event.Member.Nick != "" {
		name = event.Member.Nick
	}
	mod := event.Member != nil && event.Member.Permissions&discordgo.PermissionManageMessages != 0
	return &client.Resonance{
		ID:          event.ID,
		AuthorID:    event.Author.ID,
		AuthorName:  name,
		ChannelID:   event.ChannelID,
		GuildID:     event.GuildID,
		Text:        event.Content,
		Client:      client.Discord,
		Private:     event.GuildID == "",
		IsModerator: mod,
		Timestamp:   event.Timestamp.UnixMilli(),
	}
}
