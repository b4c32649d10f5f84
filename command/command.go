// Package command defines the command catalogue and the descriptors in it.
package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/eminence"
	"github.com/aigachu/lavenza/flavor"
	"github.com/aigachu/lavenza/gestalt"
	"github.com/aigachu/lavenza/prompt"
)

// Env is the bot state as is visible to commands.
type Env struct {
	Log     *slog.Logger
	Bot     string
	Client  client.Client
	Prompts *prompt.Engine
	Store   *gestalt.Gestalt
	Flavor  *flavor.Set
}

// Say sends text to the channel the triggering message arrived in.
func (e *Env) Say(ctx context.Context, res *client.Resonance, text string) error {
	return e.Client.Send(ctx, res.ChannelID, text)
}

// Func executes a command.
type Func func(ctx context.Context, env *Env, res *client.Resonance, args *Arguments) error

// Descriptor describes one command: how it is invoked, where it may run,
// what arguments it declares, and its authorization and cooldown defaults.
// Descriptors are registered once at startup and must not be modified after.
type Descriptor struct {
	// Key is the canonical invocation name, matched case-insensitively.
	Key string
	// Aliases are alternative invocation names.
	Aliases []string
	// Description is a one-line summary shown by the help renderer.
	Description string
	// Usage is an example invocation shown by the help renderer, without
	// the prefix.
	Usage string
	// AllowedClients restricts the client types the command runs on. Empty
	// or containing client.Wildcard means every client.
	AllowedClients []client.Type
	// TalentClients is the allow-list of the talent that granted the
	// command, resolved with the same semantics as AllowedClients.
	TalentClients []client.Type
	// Schema declares the command's arguments.
	Schema Schema
	// Base is the command's default configuration.
	Base Config
	// Clients holds per-client-type configuration overriding Base.
	Clients map[client.Type]*ClientConfig
	// Exec is the command body.
	Exec Func
}

// Schema declares a command's parameters. Named arguments supplied at
// invocation time but absent from the schema are a configuration error, not
// a quiet denial.
type Schema struct {
	// Input describes the positional input, if any.
	Input Input
	// Flags are the declared valueless named arguments.
	Flags []Parameter
	// Options are the declared named arguments that take a value.
	Options []Parameter
}

// Input describes a command's positional input.
type Input struct {
	// Required denies invocations that supply no positional input.
	Required bool
	// Description is shown by the help renderer.
	Description string
}

// Parameter is one declared flag or option.
type Parameter struct {
	// Key is the canonical name, without dashes.
	Key string
	// Aliases are alternative names, typically single-letter forms.
	Aliases []string
	// Description is shown by the help renderer.
	Description string
	// Eminence is the minimum tier required to supply this parameter, when
	// stricter than the command's own requirement.
	Eminence eminence.Tier
}

// Config is a command's authorization and cooldown configuration.
type Config struct {
	// Active gates the command entirely. Nil defaults to active.
	Active *bool `toml:"active" yaml:"active" json:"active,omitempty"`
	// Eminence is the minimum tier required to invoke the command. Nil
	// defaults to eminence.None.
	Eminence *eminence.Tier `toml:"eminence" yaml:"eminence" json:"eminence,omitempty"`
	// Cooldown is the command's cooldown windows.
	Cooldown Cooldown `toml:"cooldown" yaml:"cooldown" json:"cooldown"`
	// DirectMessages permits invocation from private channels. Nil
	// defaults to permitted.
	DirectMessages *bool `toml:"dm" yaml:"dm" json:"dm,omitempty"`
}

// ClientConfig overrides Config for one client type and adds the
// client-scoped deny lists.
type ClientConfig struct {
	Active         *bool          `toml:"active" yaml:"active" json:"active,omitempty"`
	Eminence       *eminence.Tier `toml:"eminence" yaml:"eminence" json:"eminence,omitempty"`
	Cooldown       *Cooldown      `toml:"cooldown" yaml:"cooldown" json:"cooldown,omitempty"`
	DirectMessages *bool          `toml:"dm" yaml:"dm" json:"dm,omitempty"`
	// UserBlacklist denies invocation by the listed author IDs.
	UserBlacklist []string `toml:"blacklist" yaml:"blacklist" json:"blacklist,omitempty"`
	// ChannelBlacklist denies invocation from the listed channel scopes:
	// guild IDs on Discord, channel names on Twitch.
	ChannelBlacklist []string `toml:"channel-blacklist" yaml:"channel-blacklist" json:"channel-blacklist,omitempty"`
}

// Cooldown is a pair of cooldown windows. A zero duration means no cooldown
// of that kind.
type Cooldown struct {
	// User is the per-author window.
	User time.Duration `toml:"user" yaml:"user" json:"user"`
	// Global is the window shared by all authors.
	Global time.Duration `toml:"global" yaml:"global" json:"global"`
}

// coalesce returns the first non-nil value, or def if both are nil.
func coalesce[T any](override, base *T, def T) T {
	switch {
	case override != nil:
		return *override
	case base != nil:
		return *base
	default:
		return def
	}
}

// clientConfig returns the command's configuration for a client type, which
// may be nil.
func (d *Descriptor) clientConfig(t client.Type) *ClientConfig {
	if d.Clients == nil {
		return nil
	}
	return d.Clients[t]
}

// Configured reports whether the command carries any configuration for the
// given client type.
func (d *Descriptor) Configured(t client.Type) bool {
	return d.clientConfig(t) != nil
}

// Allowed reports whether the command may run on the given client type,
// honoring both the command's own allow-list and its talent's.
func (d *Descriptor) Allowed(t client.Type) bool {
	return client.Allowed(d.AllowedClients, t) && client.Allowed(d.TalentClients, t)
}

// Active reports whether the command is enabled for the given client type.
func (d *Descriptor) Active(t client.Type) bool {
	var o *bool
	if c := d.clientConfig(t); c != nil {
		o = c.Active
	}
	return coalesce(o, d.Base.Active, true)
}

// RequiredEminence returns the tier required to invoke the command on the
// given client type.
func (d *Descriptor) RequiredEminence(t client.Type) eminence.Tier {
	var o *eminence.Tier
	if c := d.clientConfig(t); c != nil {
		o = c.Eminence
	}
	return coalesce(o, d.Base.Eminence, eminence.None)
}

// Cooldowns returns the cooldown windows effective on the given client type.
func (d *Descriptor) Cooldowns(t client.Type) Cooldown {
	if c := d.clientConfig(t); c != nil && c.Cooldown != nil {
		return *c.Cooldown
	}
	return d.Base.Cooldown
}

// DirectMessages reports whether the command may be invoked from a private
// channel on the given client type.
func (d *Descriptor) DirectMessages(t client.Type) bool {
	var o *bool
	if c := d.clientConfig(t); c != nil {
		o = c.DirectMessages
	}
	return coalesce(o, d.Base.DirectMessages, true)
}

// UserBlacklist returns the denied author IDs for the given client type.
func (d *Descriptor) UserBlacklist(t client.Type) []string {
	if c := d.clientConfig(t); c != nil {
		return c.UserBlacklist
	}
	return nil
}

// ChannelBlacklist returns the denied channel scopes for the given client
// type.
func (d *Descriptor) ChannelBlacklist(t client.Type) []string {
	if c := d.clientConfig(t); c != nil {
		return c.ChannelBlacklist
	}
	return nil
}

// Parameter looks up a declared flag or option by name or alias,
// case-insensitively. The second result reports whether the parameter is a
// flag rather than an option.
func (s *Schema) Parameter(name string) (*Parameter, bool) {
	for i := range s.Flags {
		if matches(&s.Flags[i], name) {
			return &s.Flags[i], true
		}
	}
	for i := range s.Options {
		if matches(&s.Options[i], name) {
			return &s.Options[i], false
		}
	}
	return nil, false
}

func matches(p *Parameter, name string) bool {
	if strings.EqualFold(p.Key, name) {
		return true
	}
	for _, a := range p.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
