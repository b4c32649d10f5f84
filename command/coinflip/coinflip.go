// Package coinflip provides a prompt-driven coin toss game.
package coinflip

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/prompt"
)

// Command returns the coinflip descriptor. The game asks the invoker to
// call the toss and waits on their next message, so it exercises the whole
// prompt lifecycle: routing, validation resets, and timeouts.
func Command() *command.Descriptor {
	return &command.Descriptor{
		Key:         "coinflip",
		Aliases:     []string{"flip"},
		Description: "call a coin toss",
		Usage:       "coinflip [--best-of 3]",
		Schema: command.Schema{
			Options: []command.Parameter{
				{Key: "best-of", Aliases: []string{"n"}, Description: "play a series; odd, at most 9"},
			},
		},
		Base: command.Config{
			Cooldown: command.Cooldown{User: 30 * time.Second},
		},
		Exec: run,
	}
}

const (
	callTimeout = 30 * time.Second
	maxTries    = 3
)

func run(ctx context.Context, env *command.Env, res *client.Resonance, args *command.Arguments) error {
	rounds := 1
	if v, ok := args.Option("best-of"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 9 || n%2 == 0 {
			return env.Say(ctx, res, "best-of wants an odd number up to 9.")
		}
		rounds = n
	}
	wins, losses := 0, 0
	for wins <= rounds/2 && losses <= rounds/2 {
		if err := env.Say(ctx, res, "Call it: heads or tails?"); err != nil {
			return err
		}
		call, err := env.Prompts.AwaitValid(ctx, res.AuthorID, res.ChannelID, callTimeout, maxTries, func(reply *client.Resonance) error {
			s := strings.ToLower(strings.TrimSpace(reply.Text))
			if s != "heads" && s != "tails" {
				env.Say(ctx, res, nag(env))
				return prompt.ErrInvalidResponse
			}
			return nil
		})
		switch {
		case errors.Is(err, prompt.ErrInFlight):
			return env.Say(ctx, res, "Finish your other game first.")
		case errors.Is(err, prompt.ErrNoResponse):
			return env.Say(ctx, res, timeoutNotice(env))
		case errors.Is(err, prompt.ErrMaxResetsExceeded):
			return env.Say(ctx, res, "That's not how coins work. Game over.")
		case err != nil:
			return err
		}
		side := "heads"
		if rand.IntN(2) == 1 {
			side = "tails"
		}
		if strings.EqualFold(strings.TrimSpace(call.Text), side) {
			wins++
			if err := env.Say(ctx, res, fmt.Sprintf("It's %s. Point to you. (%d-%d)", side, wins, losses)); err != nil {
				return err
			}
		} else {
			losses++
			if err := env.Say(ctx, res, fmt.Sprintf("It's %s. Point to me. (%d-%d)", side, wins, losses)); err != nil {
				return err
			}
		}
	}
	verdict := "You win the series."
	if losses > wins {
		verdict = "I take the series."
	}
	return env.Say(ctx, res, verdict)
}

func nag(env *command.Env) string {
	if s := env.Flavor.Pick("prompt.invalid"); s != "" {
		return s
	}
	return "Heads or tails."
}

func timeoutNotice(env *command.Env) string {
	if s := env.Flavor.Pick("prompt.timeout"); s != "" {
		return s
	}
	return "Too slow."
}
