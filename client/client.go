// Package client defines the capability surface the core requires from chat
// clients, along with the resonance type that carries inbound messages.
package client

import (
	"context"
	"time"

	"github.com/aigachu/lavenza/eminence"
)

// Type identifies a kind of chat client.
type Type string

const (
	Discord Type = "discord"
	Twitch  Type = "twitch"
)

// Wildcard in an allowed-clients list means every client type.
const Wildcard = "*"

// Allowed resolves an allowed-clients list against a client type. An empty
// list or a list containing the wildcard permits every client.
func Allowed(list []Type, t Type) bool {
	if len(list) == 0 {
		return true
	}
	for _, e := range list {
		if e == Wildcard || e == t {
			return true
		}
	}
	return false
}

// Resonance is one inbound message together with its client context.
// It is created by a client adapter, is immutable once handed to the core,
// and is discarded when the pipeline finishes with it.
type Resonance struct {
	// ID is the client's unique ID for the message, if it has one.
	ID string
	// AuthorID uniquely identifies the message sender on the client.
	AuthorID string
	// AuthorName is the sender's display name.
	AuthorName string
	// ChannelID identifies the channel the message arrived in.
	ChannelID string
	// GuildID identifies the server scope containing the channel on clients
	// that have one. It is empty on Twitch and in Discord DMs.
	GuildID string
	// Text is the message text.
	Text string
	// Client is the type of client the message arrived on.
	Client Type
	// Private indicates the message arrived in a private or direct channel.
	Private bool
	// IsModerator indicates the client reports the sender as a moderator of
	// the channel. Adapters may use it as a floor for tier resolution.
	IsModerator bool
	// Timestamp is the message time as milliseconds since the Unix epoch.
	Timestamp int64
}

func (r *Resonance) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// TierResolver resolves the eminence of a resonance's author. Each client
// adapter implements it over its own notion of context: guild role maps on
// Discord, channel user maps on Twitch.
type TierResolver interface {
	ResolveTier(ctx context.Context, r *Resonance) (eminence.Tier, error)
}

// Client is a connected chat client as seen by the core. Adapters bridge the
// wire protocol entirely behind this interface.
type Client interface {
	TierResolver

	// Type returns the client's type.
	Type() Type
	// Send sends a message to a channel.
	Send(ctx context.Context, channelID, text string) error
	// Whisper sends a message directly to a user where the client supports
	// it; otherwise it may deliver through a shared channel.
	Whisper(ctx context.Context, userID, text string) error
	// CommandPrefix returns the client-level command prefix override, or the
	// empty string if the client has none configured.
	CommandPrefix() string
	// TypeFor shows a typing indicator for roughly the given duration.
	// It is cosmetic; clients with no such concept do nothing.
	TypeFor(ctx context.Context, channelID string, d time.Duration)
}
