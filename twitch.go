package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/sync/errgroup"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/client/twitchc"
)

// twitch connects one bot to TMI and serves its message loop until the
// context closes.
func (c *Core) twitch(ctx context.Context, group *errgroup.Group, b *Bot) error {
	conn := b.twitch
	hc := &http.Client{Timeout: 30 * time.Second}
	id, tok, err := twitchc.Login(ctx, hc, conn.tokens)
	if err != nil {
		return fmt.Errorf("couldn't log in to TMI: %w", err)
	}
	slog.InfoContext(ctx, "Twitch identity",
		slog.String("bot", b.id),
		slog.String("login", id.Login),
		slog.String("id", id.UserID),
	)
	nick := conn.nick
	if nick == "" {
		nick = id.Login
	}
	cfg := tmi.ConnectConfig{
		Dial:         new(tls.Dialer).DialContext,
		RetryWait:    tmi.RetryList(true, 0, time.Second, time.Minute, 5*time.Minute),
		Nick:         strings.ToLower(nick),
		Pass:         "oauth:" + tok.AccessToken,
		Capabilities: []string{"twitch.tv/commands", "twitch.tv/tags"},
		Timeout:      300 * time.Second,
	}
	go c.tmiLoop(ctx, group, b, conn.send, conn.recv)
	tmi.Connect(ctx, cfg, tmi.Log(log.Default(), false), conn.send, conn.recv)
	return ctx.Err()
}

func (c *Core) tmiLoop(ctx context.Context, group *errgroup.Group, b *Bot, send chan<- *tmi.Message, recv <-chan *tmi.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-recv:
			if !ok {
				return
			}
			switch msg.Command {
			case "PRIVMSG":
				group.Go(func() error {
					b.Hear(ctx, b.clients[client.Twitch], twitchc.Resonance(msg))
					return nil
				})
			case "WHISPER":
				group.Go(func() error {
					r := twitchc.Resonance(msg)
					r.Private = true
					b.Hear(ctx, b.clients[client.Twitch], r)
					return nil
				})
			case "NOTICE":
				// nothing yet
			case "USERSTATE":
				// Per-channel state carries nothing we track.
			case "GLOBALUSERSTATE":
				slog.InfoContext(ctx, "connected to TMI", slog.String("bot", b.id), slog.String("GLOBALUSERSTATE", msg.Tags))
			case "366": // End NAMES
				if len(msg.Params) > 1 {
					slog.InfoContext(ctx, "joined channel", slog.String("bot", b.id), slog.String("channel", msg.Params[1]))
				}
			case "376": // End MOTD
				go joinTwitch(ctx, send, b.twitch.channels)
			}
		}
	}
}

func joinTwitch(ctx context.Context, send chan<- *tmi.Message, channels []string) {
	ls := make([]string, len(channels))
	copy(ls, channels)
	burst := 20
	for len(ls) > 0 {
		l := ls[:min(burst, len(ls))]
		ls = ls[len(l):]
		msg := tmi.Message{
			Command: "JOIN",
			Params:  []string{strings.Join(l, ",")},
		}
		select {
		case <-ctx.Done():
			return
		case send <- &msg:
			// do nothing
		}
		if len(ls) > 0 {
			// Per https://dev.twitch.tv/docs/irc/#rate-limits we get 20 join
			// attempts per ten seconds. Use a slightly longer delay to ensure
			// we don't get globaled by clock drift.
			time.Sleep(11 * time.Second)
		}
	}
}
