// Package ping provides the connectivity check command.
package ping

import (
	"context"
	"strings"
	"time"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
)

// Command returns the ping descriptor.
func Command() *command.Descriptor {
	return &command.Descriptor{
		Key:         "ping",
		Aliases:     []string{"pong"},
		Description: "check that the bot is alive",
		Usage:       "ping [--loud]",
		Schema: command.Schema{
			Flags: []command.Parameter{
				{Key: "loud", Aliases: []string{"l"}, Description: "shout the reply"},
			},
		},
		Base: command.Config{
			Cooldown: command.Cooldown{User: 10 * time.Second},
		},
		Exec: run,
	}
}

func run(ctx context.Context, env *command.Env, res *client.Resonance, args *command.Arguments) error {
	msg := env.Flavor.Pick("ping")
	if msg == "" {
		msg = "Pong!"
	}
	if args.Flags["loud"] || args.Flags["l"] {
		msg = strings.ToUpper(msg)
	}
	return env.Say(ctx, res, msg)
}
