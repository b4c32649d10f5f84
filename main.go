package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/aigachu/lavenza/gestalt"
)

var app = cli.Command{
	Name:  "lavenza",
	Usage: "Chat bot orchestration framework",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:  "init",
			Usage: "Seed a bot's encrypted Twitch token storage",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "bot",
					Usage:    "Bot ID from the configuration",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "access",
					Usage:    "Access token to seed; may be expired",
				},
				&cli.StringFlag{
					Name:     "refresh",
					Usage:    "Refresh token to seed",
					Required: true,
				},
			},
			Action: cliInit,
		},
		{
			Name:  "tally",
			Usage: "Print per-command invocation counts from the journal",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "bot",
					Usage:    "Bot ID from the configuration",
					Required: true,
				},
			},
			Action: cliTally,
		},
	},
	Action: cliRun,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("couldn't open config file: %w", err)
	}
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return fmt.Errorf("couldn't load config: %w", err)
	}
	r.Close()

	svc, jn, err := loadStores(ctx, cfg.DB)
	if err != nil {
		return err
	}
	talents := builtins()
	if cfg.TalentDir != "" {
		if err := talents.LoadOverlays(cfg.TalentDir); err != nil {
			return fmt.Errorf("couldn't load talent overlays: %w", err)
		}
	}
	core := New(gestalt.New(svc), jn, runtime.GOMAXPROCS(0))
	if err := core.SetBots(ctx, cfg, talents); err != nil {
		return err
	}
	return core.Run(ctx, cfg.HTTP.Listen)
}

func cliInit(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("couldn't open config file: %w", err)
	}
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return fmt.Errorf("couldn't load config: %w", err)
	}
	r.Close()
	id := cmd.String("bot")
	bc := cfg.Bots[id]
	if bc == nil || bc.Twitch == nil {
		return fmt.Errorf("no Twitch configuration for bot %s", id)
	}
	secret, err := os.ReadFile(cfg.SecretFile)
	if err != nil {
		return fmt.Errorf("couldn't read secret key: %w", err)
	}
	_, stor, err := twitchTokens(secret, id, bc.Twitch)
	if err != nil {
		return err
	}
	tok := &oauth2.Token{
		AccessToken:  cmd.String("access"),
		RefreshToken: cmd.String("refresh"),
		TokenType:    "bearer",
		// Mark the access token expired so the first use refreshes.
		Expiry: time.Now().Add(-time.Minute),
	}
	if err := stor.Store(ctx, tok); err != nil {
		return fmt.Errorf("couldn't store token: %w", err)
	}
	fmt.Println("stored Twitch token for", id)
	return nil
}

func cliTally(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("couldn't open config file: %w", err)
	}
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return fmt.Errorf("couldn't load config: %w", err)
	}
	r.Close()
	_, jn, err := loadStores(ctx, cfg.DB)
	if err != nil {
		return err
	}
	tally, err := jn.Tally(ctx, cmd.String("bot"))
	if err != nil {
		return fmt.Errorf("couldn't tally journal: %w", err)
	}
	for k, n := range tally {
		fmt.Println(k, n)
	}
	return nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}
