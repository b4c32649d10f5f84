package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/client/discordc"
)

// discord connects one bot to Discord and serves until the context closes.
func (c *Core) discord(ctx context.Context, b *Bot) error {
	session := b.session
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	session.AddHandler(func(s *discordgo.Session, event *discordgo.MessageCreate) {
		b.Hear(ctx, b.clients[client.Discord], discordc.Resonance(event))
	})
	session.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		slog.InfoContext(ctx, "connected to Discord",
			slog.String("bot", b.id),
			slog.String("user", event.User.String()),
			slog.Int("guilds", len(event.Guilds)),
		)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("couldn't open Discord session: %w", err)
	}
	<-ctx.Done()
	if err := session.Close(); err != nil {
		return fmt.Errorf("couldn't close Discord session: %w", err)
	}
	return ctx.Err()
}
