// Package authorizer decides whether a parsed invocation may execute.
//
// Authorization is an ordered fail-fast chain. Every check that denies logs
// its own warning reason, but the caller sees a uniform boolean; there are
// no partial-authorization states. The sole exception is an argument not
// declared by the command's schema, which is an operator-visible error
// rather than a quiet denial.
package authorizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/cooldown"
)

// ErrUnknownArgument indicates an invocation supplied a named argument the
// command does not declare. It is a configuration or usage mismatch that
// must reach the operator, not a plain deny.
var ErrUnknownArgument = errors.New("unknown argument")

// WarrantFunc is a client-type-specific authorization hook run last in the
// chain, after every client-agnostic check has passed.
type WarrantFunc func(ctx context.Context, d *command.Descriptor, res *client.Resonance) (bool, error)

// Warranter is an optional client capability supplying the client's warrant.
// A client implementing it replaces the default channel-blacklist check with
// its own scoping, e.g. guild-wide blacklists on Discord.
type Warranter interface {
	Warrant(ctx context.Context, d *command.Descriptor, res *client.Resonance) (bool, error)
}

// Request bundles everything one authorization decision needs. Build one
// per instruction; a Request is read-only during authorization.
type Request struct {
	Log *slog.Logger
	// Bot is the bot ID, used in cooldown signatures and log lines.
	Bot string
	// Owner is the configured owner author ID for the message's client.
	// The owner bypasses every check except cooldowns, activation included.
	Owner     string
	Command   *command.Descriptor
	Args      *command.Arguments
	Resonance *client.Resonance
	// Resolver resolves the author's eminence in the message's context.
	Resolver client.TierResolver
	// Cooldowns is the registry consulted for, and later armed with, the
	// invocation's cooldown signatures.
	Cooldowns *cooldown.Registry
	// Notify, if non-nil, is invoked when the denial reason is an armed
	// cooldown, so the author learns why the bot stayed silent.
	Notify func(ctx context.Context)
	// Warrant, if non-nil, replaces the default channel-blacklist check
	// with a client-specific one.
	Warrant WarrantFunc
}

// signatures returns the invocation's global and per-author cooldown
// signatures.
func (r *Request) signatures() (global, user string) {
	t := string(r.Resonance.Client)
	global = cooldown.Signature(r.Bot, t, r.Command.Key)
	user = cooldown.Signature(r.Bot, t, r.Command.Key, r.Resonance.AuthorID)
	return global, user
}

// Authorize runs the chain. The boolean is the decision; a non-nil error is
// an infrastructure failure or an unknown-argument hard failure, and always
// accompanies a false decision.
func Authorize(ctx context.Context, r *Request) (bool, error) {
	d, res := r.Command, r.Resonance
	t := res.Client
	global, user := r.signatures()
	cooled := r.Cooldowns.IsArmed(global) || r.Cooldowns.IsArmed(user)
	if r.Owner != "" && res.AuthorID == r.Owner {
		// The owner skips every permission check, activation included.
		// Cooldowns still bind them.
		if cooled {
			r.deny(ctx, "command on cooldown")
			if r.Notify != nil {
				r.Notify(ctx)
			}
			return false, nil
		}
		return true, nil
	}
	if !d.Active(t) {
		r.deny(ctx, "command inactive")
		return false, nil
	}
	if cooled {
		r.deny(ctx, "command on cooldown")
		if r.Notify != nil {
			r.Notify(ctx)
		}
		return false, nil
	}
	if !d.Configured(t) {
		// Nothing client-specific to check.
		return true, nil
	}
	if res.Private && !d.DirectMessages(t) {
		r.deny(ctx, "command not allowed in private channels")
		return false, nil
	}
	if slices.Contains(d.UserBlacklist(t), res.AuthorID) {
		r.deny(ctx, "author blacklisted")
		return false, nil
	}
	tier, err := r.Resolver.ResolveTier(ctx, res)
	if err != nil {
		return false, fmt.Errorf("couldn't resolve author eminence: %w", err)
	}
	if req := d.RequiredEminence(t); !tier.Meets(req) {
		r.deny(ctx, "insufficient eminence", slog.Any("have", tier), slog.Any("need", req))
		return false, nil
	}
	if d.Schema.Input.Required && len(r.Args.Positional) == 0 {
		r.deny(ctx, "required input missing")
		return false, nil
	}
	for _, name := range r.Args.Named() {
		if name == "help" || name == "h" {
			continue
		}
		p, _ := d.Schema.Parameter(name)
		if p == nil {
			return false, fmt.Errorf("couldn't validate arguments for %s: %w: %q", d.Key, ErrUnknownArgument, name)
		}
		if !tier.Meets(p.Eminence) {
			r.deny(ctx, "insufficient eminence for argument", slog.String("argument", name), slog.Any("have", tier), slog.Any("need", p.Eminence))
			return false, nil
		}
	}
	if r.Warrant != nil {
		ok, err := r.Warrant(ctx, d, res)
		if err != nil {
			return false, fmt.Errorf("couldn't run client warrant: %w", err)
		}
		if !ok {
			r.deny(ctx, "client warrant refused")
		}
		return ok, nil
	}
	if slices.Contains(d.ChannelBlacklist(t), res.ChannelID) {
		r.deny(ctx, "channel blacklisted")
		return false, nil
	}
	return true, nil
}

// Cool arms the invocation's global and per-author cooldown signatures with
// the command's effective windows. A zero window leaves that signature
// unarmed.
func Cool(r *Request) {
	cd := r.Command.Cooldowns(r.Resonance.Client)
	global, user := r.signatures()
	r.Cooldowns.Arm(global, cd.Global)
	r.Cooldowns.Arm(user, cd.User)
}

func (r *Request) deny(ctx context.Context, reason string, attrs ...any) {
	args := append([]any{
		slog.String("bot", r.Bot),
		slog.String("command", r.Command.Key),
		slog.String("author", r.Resonance.AuthorID),
		slog.String("client", string(r.Resonance.Client)),
	}, attrs...)
	r.Log.WarnContext(ctx, reason, args...)
}
