package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"
	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/sync/errgroup"

	"github.com/aigachu/lavenza/auth"
	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/client/discordc"
	"github.com/aigachu/lavenza/client/twitchc"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/cooldown"
	"github.com/aigachu/lavenza/flavor"
	"github.com/aigachu/lavenza/gestalt"
	"github.com/aigachu/lavenza/journal"
	"github.com/aigachu/lavenza/metrics"
	"github.com/aigachu/lavenza/prompt"
	"github.com/aigachu/lavenza/talent"
)

// Core is the shared state of every bot in the process.
type Core struct {
	// store is the gestalt configuration and state store.
	store *gestalt.Gestalt
	// journal records executed invocations.
	journal *journal.Journal
	// cooldowns is the registry of armed cooldown signatures. Signatures
	// embed the bot ID, so one registry serves every bot.
	cooldowns *cooldown.Registry
	// metrics are the pipeline metrics.
	metrics *metrics.Metrics
	// bots are the running bots by ID.
	bots map[string]*Bot
	// works is the worker pool for message dispatch.
	works chan chan func(context.Context)
}

// New creates a Core around the given stores.
func New(store *gestalt.Gestalt, jn *journal.Journal, poolSize int) *Core {
	return &Core{
		store:     store,
		journal:   jn,
		cooldowns: cooldown.New(),
		metrics:   metrics.New(),
		bots:      make(map[string]*Bot),
		works:     make(chan chan func(context.Context), poolSize),
	}
}

// SetBots builds the configured bots. It must be called before Run.
func (c *Core) SetBots(ctx context.Context, cfg *Config, talents *talent.Registry) error {
	var secret []byte
	if cfg.SecretFile != "" {
		var err error
		secret, err = os.ReadFile(cfg.SecretFile)
		if err != nil {
			return fmt.Errorf("couldn't read secret key: %w", err)
		}
	}
	for id, bc := range cfg.Bots {
		b, err := c.newBot(ctx, id, bc, cfg.Flavor, secret, talents)
		if err != nil {
			return fmt.Errorf("couldn't summon %s: %w", id, err)
		}
		c.bots[id] = b
	}
	return nil
}

func (c *Core) newBot(ctx context.Context, id string, bc *BotCfg, global map[string]map[string]int, secret []byte, talents *talent.Registry) (*Bot, error) {
	log := slog.Default().With(slog.String("bot", id))
	cat := command.NewCatalogue()
	if err := talent.Grant(ctx, log, talents, bc.Talents, cat); err != nil {
		return nil, err
	}
	prompts := prompt.NewEngine()
	prompts.OnCreate = func() { c.metrics.PromptsCreated.Observe(1) }
	prompts.OnTimeout = func() { c.metrics.PromptTimeouts.Observe(1) }
	b := &Bot{
		id:        id,
		core:      c,
		log:       log,
		prefix:    bc.Prefix,
		catalogue: cat,
		prompts:   prompts,
		flavors:   flavor.New(mergegroups(global, bc.Flavor)),
		clients:   make(map[client.Type]client.Client),
		owners:    make(map[client.Type]string),
	}
	if b.prefix == "" {
		b.prefix = "!"
	}
	if err := b.syncCommands(ctx); err != nil {
		return nil, err
	}
	if t := bc.Twitch; t != nil {
		tiers, err := tiermap(t.Tiers)
		if err != nil {
			return nil, err
		}
		tokens, _, err := twitchTokens(secret, id, t)
		if err != nil {
			return nil, err
		}
		send := make(chan *tmi.Message, 1)
		b.clients[client.Twitch] = twitchc.New(twitchc.Config{
			Name:   t.Nick,
			Prefix: t.Prefix,
			Rate:   t.Rate.limiter(),
			Tiers:  tiers,
		}, send)
		b.owners[client.Twitch] = t.Owner
		b.twitch = &twitchConn{
			nick:     t.Nick,
			channels: t.Channels,
			tokens:   tokens,
			send:     send,
			recv:     make(chan *tmi.Message, 8), // 8 is enough for on-connect msgs
		}
	}
	if d := bc.Discord; d != nil {
		tiers, err := tiermap(d.Tiers)
		if err != nil {
			return nil, err
		}
		tok, err := os.ReadFile(d.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("couldn't read Discord token: %w", err)
		}
		session, err := discordgo.New("Bot " + strings.TrimSpace(string(tok)))
		if err != nil {
			return nil, fmt.Errorf("couldn't create Discord session: %w", err)
		}
		b.clients[client.Discord] = discordc.New(session, discordc.Config{
			Prefix: d.Prefix,
			Tiers:  tiers,
		})
		b.owners[client.Discord] = d.Owner
		b.session = session
	}
	return b, nil
}

// Run starts the API server and every configured client connection, then
// serves until the context closes.
func (c *Core) Run(ctx context.Context, listen string) error {
	group, ctx := errgroup.WithContext(ctx)
	if listen != "" {
		group.Go(func() error {
			return c.api(ctx, listen, http.NewServeMux(), c.metrics.Collectors())
		})
	}
	for _, b := range c.bots {
		if b.twitch != nil {
			group.Go(func() error { return c.twitch(ctx, group, b) })
		}
		if b.session != nil {
			group.Go(func() error { return c.discord(ctx, b) })
		}
	}
	err := group.Wait()
	if err == context.Canceled {
		// If the first error is context canceled, then we are shutting down
		// normally in response to a sigint.
		err = nil
	}
	return err
}

// enqueue sends work to the worker pool, spawning a new worker when all are
// busy so that the message loops never block.
func (c *Core) enqueue(ctx context.Context, work func(context.Context)) {
	var w chan func(context.Context)
	select {
	case w = <-c.works:
	default:
		w = make(chan func(context.Context), 1)
		go worker(ctx, c.works, w)
	}
	select {
	case <-ctx.Done():
		return
	case w <- work:
	}
}

// worker runs works for a while. The provided context is passed to each work.
func worker(ctx context.Context, works chan chan func(context.Context), ch chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case work := <-ch:
			work(ctx)
			// Replace ourselves in the pool if it needs additional capacity.
			// Otherwise, we're done.
			select {
			case works <- ch:
			default:
				return
			}
		}
	}
}

// twitchConn holds one bot's TMI connection state.
type twitchConn struct {
	nick     string
	channels []string
	tokens   auth.TokenSource
	send     chan *tmi.Message
	recv     chan *tmi.Message
}
