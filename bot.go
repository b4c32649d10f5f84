package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/aigachu/lavenza/authorizer"
	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/flavor"
	"github.com/aigachu/lavenza/gestalt"
	"github.com/aigachu/lavenza/instruction"
	"github.com/aigachu/lavenza/journal"
	"github.com/aigachu/lavenza/prompt"
)

// Bot is one configured bot identity with its own catalogue, prompts, and
// flavor, dispatching over shared core state.
type Bot struct {
	id   string
	core *Core
	log  *slog.Logger
	// prefix is the bot's command prefix, overridable per client.
	prefix    string
	catalogue *command.Catalogue
	prompts   *prompt.Engine
	flavors   *flavor.Set
	// clients are the bot's connected clients by type.
	clients map[client.Type]client.Client
	// owners are the configured owner author IDs by client type.
	owners map[client.Type]string

	twitch  *twitchConn
	session *discordgo.Session
}

// commandRecord is the gestalt shape of one command's configuration.
type commandRecord struct {
	Base    command.Config                        `json:"base"`
	Clients map[client.Type]*command.ClientConfig `json:"clients,omitempty"`
}

// syncCommands reconciles every catalogue command's configuration with the
// gestalt store. Compiled-in defaults seed the store on first run; stored
// values win afterward, so operators edit the store rather than the code.
func (b *Bot) syncCommands(ctx context.Context) error {
	for _, d := range b.catalogue.All() {
		path := "bots/" + b.id + "/commands/" + d.Key
		def := commandRecord{Base: d.Base, Clients: d.Clients}
		rec, err := gestalt.SyncValue(ctx, b.core.store, path, def)
		if err != nil {
			return err
		}
		d.Base = rec.Base
		d.Clients = rec.Clients
	}
	return nil
}

// Hear runs one inbound message through the dispatch pipeline. It returns
// immediately; the pipeline itself runs on the core's worker pool.
func (b *Bot) Hear(ctx context.Context, cl client.Client, res *client.Resonance) {
	if res == nil {
		return
	}
	b.core.metrics.MessagesHeard.Observe(1)
	b.core.enqueue(ctx, func(ctx context.Context) { b.dispatch(ctx, cl, res) })
}

func (b *Bot) dispatch(ctx context.Context, cl client.Client, res *client.Resonance) {
	if b.prompts.Route(ctx, res) {
		b.core.metrics.PromptsRouted.Observe(1)
		return
	}
	prefix := cl.CommandPrefix()
	if prefix == "" {
		prefix = b.prefix
	}
	in := instruction.Parse(b.catalogue, prefix, cl.Type(), res.Text)
	if in == nil {
		return
	}
	b.core.metrics.InstructionsParsed.Observe(1)
	log := b.log.With(
		slog.Any("trace", uuid.New()),
		slog.String("command", in.Command.Key),
		slog.String("client", string(cl.Type())),
	)
	log.InfoContext(ctx, "instruction",
		slog.String("author", res.AuthorID),
		slog.String("channel", res.ChannelID),
		slog.String("args", in.Args.Raw),
	)
	req := &authorizer.Request{
		Log:       log,
		Bot:       b.id,
		Owner:     b.owners[cl.Type()],
		Command:   in.Command,
		Args:      in.Args,
		Resonance: res,
		Resolver:  cl,
		Cooldowns: b.core.cooldowns,
		Notify: func(ctx context.Context) {
			b.core.metrics.CooldownHits.Observe(1)
			if s := b.flavors.Pick("cooldown"); s != "" {
				if err := cl.Send(ctx, res.ChannelID, s); err != nil {
					log.WarnContext(ctx, "couldn't send cooldown notice", slog.Any("err", err))
				}
			}
		},
	}
	if w, ok := cl.(authorizer.Warranter); ok {
		req.Warrant = w.Warrant
	}
	ok, err := authorizer.Authorize(ctx, req)
	if err != nil {
		b.core.metrics.CommandsDenied.Observe(1)
		if errors.Is(err, authorizer.ErrUnknownArgument) {
			log.ErrorContext(ctx, "bad invocation", slog.Any("err", err))
			return
		}
		log.ErrorContext(ctx, "authorization failed", slog.Any("err", err))
		return
	}
	if !ok {
		// The chain already logged its reason. Denials other than cooldowns
		// stay silent in chat.
		b.core.metrics.CommandsDenied.Observe(1)
		return
	}
	b.core.metrics.CommandsAuthorized.Observe(1)
	if in.Args.WantsHelp() {
		// Help costs nothing, so it burns no cooldown.
		if err := cl.Send(ctx, res.ChannelID, command.Help(in.Command, prefix)); err != nil {
			log.WarnContext(ctx, "couldn't send help", slog.Any("err", err))
		}
		return
	}
	env := &command.Env{
		Log:     log,
		Bot:     b.id,
		Client:  cl,
		Prompts: b.prompts,
		Store:   b.core.store,
		Flavor:  b.flavors,
	}
	start := time.Now()
	err = in.Command.Exec(ctx, env, res, in.Args)
	b.core.metrics.ExecLatency.Observe(time.Since(start).Seconds(), in.Command.Key)
	if err != nil {
		log.ErrorContext(ctx, "command failed", slog.Any("err", err))
	}
	e := journal.Entry{
		Bot:     b.id,
		Client:  string(cl.Type()),
		Channel: res.ChannelID,
		Author:  res.AuthorID,
		Command: in.Command.Key,
		Args:    in.Args.Raw,
		Time:    time.Now(),
	}
	if err := b.core.journal.Record(ctx, e); err != nil {
		log.ErrorContext(ctx, "couldn't journal invocation", slog.Any("err", err))
	}
	authorizer.Cool(req)
}
