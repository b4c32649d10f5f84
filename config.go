package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/aigachu/lavenza/auth"
	"github.com/aigachu/lavenza/eminence"
	"github.com/aigachu/lavenza/gestalt"
	"github.com/aigachu/lavenza/gestalt/chronicler"
	"github.com/aigachu/lavenza/gestalt/kvgestalt"
	"github.com/aigachu/lavenza/journal"
)

// Load loads Lavenza from a TOML configuration.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// loadStores opens the gestalt backend and the journal database.
// Exactly one gestalt backend must be configured.
func loadStores(ctx context.Context, cfg DBCfg) (gestalt.StorageService, *journal.Journal, error) {
	if cfg.Gestalt != "" && cfg.KVGestalt != "" {
		return nil, nil, fmt.Errorf("multiple gestalt backends requested; use exactly one")
	}
	if cfg.Gestalt == "" && cfg.KVGestalt == "" {
		return nil, nil, fmt.Errorf("no gestalt backend requested; use exactly one")
	}
	var svc gestalt.StorageService
	var err error
	switch {
	case cfg.Gestalt != "":
		slog.DebugContext(ctx, "using chronicler gestalt", slog.String("path", cfg.Gestalt))
		svc, err = chronicler.New(cfg.Gestalt)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't open gestalt tree: %w", err)
		}
	case cfg.KVGestalt != "":
		slog.DebugContext(ctx, "using kv gestalt", slog.String("path", cfg.KVGestalt))
		svc, err = kvgestalt.Open(cfg.KVGestalt)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't open kv gestalt: %w", err)
		}
	}
	if cfg.Journal == "" {
		return nil, nil, fmt.Errorf("no journal database requested")
	}
	slog.DebugContext(ctx, "journal db", slog.String("path", cfg.Journal))
	pool, err := sqlitex.NewPool(cfg.Journal, sqlitex.PoolOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't open journal db: %w", err)
	}
	if err := journal.Init(ctx, pool); err != nil {
		return nil, nil, fmt.Errorf("couldn't init journal: %w", err)
	}
	jn, err := journal.Open(ctx, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't open journal: %w", err)
	}
	return svc, jn, nil
}

// twitchTokens opens the bot's encrypted Twitch refresh token storage and
// wraps it in a refreshing token source. The storage key is derived from the
// fixed secret per bot, so bots cannot read each other's tokens.
func twitchTokens(secret []byte, botID string, t *TwitchCfg) (auth.TokenSource, auth.Storage, error) {
	cs, err := os.ReadFile(t.SecretFile)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't read client secret: %w", err)
	}
	key := domainkey(make([]byte, auth.KeySize), secret, []byte("oauth2.twitch."+botID))
	stor, err := auth.NewFileAt(t.TokenFile, [auth.KeySize]byte(key))
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't use refresh token storage: %w", err)
	}
	cfg := oauth2.Config{
		ClientID:     t.CID,
		ClientSecret: string(cs),
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://id.twitch.tv/oauth2/token",
		},
		Scopes: []string{"chat:read", "chat:edit"},
	}
	client := &http.Client{Timeout: 30 * time.Second}
	return auth.RefreshFlow(cfg, stor, client), stor, nil
}

// tiermap resolves configured tier names to eminence tiers.
func tiermap(m map[string]string) (map[string]eminence.Tier, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]eminence.Tier, len(m))
	for id, name := range m {
		t, err := eminence.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("couldn't resolve tier for %s: %w", id, err)
		}
		out[id] = t
	}
	return out, nil
}

// mergegroups lays each group map over the previous ones, accumulating
// weights for shared phrases.
func mergegroups(gs ...map[string]map[string]int) map[string]map[string]int {
	u := make(map[string]map[string]int)
	for _, g := range gs {
		for name, m := range g {
			if u[name] == nil {
				u[name] = make(map[string]int, len(m))
			}
			for k, v := range m {
				u[name][k] += v
			}
		}
	}
	return u
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (r Rate) limiter() *rate.Limiter {
	if r.Num <= 0 {
		// Twitch allows 20 messages in 30 seconds for ordinary bots.
		return rate.NewLimiter(rate.Every(30*time.Second/20), 1)
	}
	return rate.NewLimiter(rate.Every(fseconds(r.Every)), r.Num)
}

// domainkey fills o with a key derived from k for the given domain. Panics if
// a key cannot be expanded.
func domainkey(o, k, domain []byte) []byte {
	kr := hkdf.Expand(sha3.New224, k, domain)
	if _, err := io.ReadFull(kr, o); err != nil {
		panic(err)
	}
	return o
}

// Config is the marshaled structure of Lavenza's configuration.
type Config struct {
	// SecretFile is the path to a file containing a secret key used to
	// encrypt durable secrets like OAuth2 refresh tokens.
	SecretFile string `toml:"secret"`
	// TalentDir is a directory of talent manifest overlays, if any.
	TalentDir string `toml:"talents"`
	// HTTP is the HTTP API configuration.
	HTTP HTTPCfg `toml:"http"`
	// DB is the table of storage paths and connection strings.
	DB DBCfg `toml:"db"`
	// Flavor is the global table of weighted response phrases by group.
	Flavor map[string]map[string]int `toml:"flavor"`
	// Bots is the set of bots to run, keyed by bot ID.
	Bots map[string]*BotCfg `toml:"bots"`
}

// BotCfg is the configuration for one bot.
type BotCfg struct {
	// Prefix is the bot's command prefix. Clients may override it.
	Prefix string `toml:"prefix"`
	// Talents is the list of talents granted to the bot.
	Talents []string `toml:"talents"`
	// Flavor is laid over the global flavor table for this bot.
	Flavor map[string]map[string]int `toml:"flavor"`
	// Twitch is the bot's Twitch connection, if any.
	Twitch *TwitchCfg `toml:"twitch"`
	// Discord is the bot's Discord connection, if any.
	Discord *DiscordCfg `toml:"discord"`
}

// TwitchCfg is the configuration for one bot's Twitch connection.
type TwitchCfg struct {
	// CID is the OAuth2 client ID.
	CID string `toml:"cid"`
	// SecretFile is the path to a file containing the client secret.
	SecretFile string `toml:"secret"`
	// TokenFile is the path to a file in which the bot persists its OAuth2
	// refresh token, encrypted with a key derived from the fixed secret.
	TokenFile string `toml:"token"`
	// Nick is the bot's login name.
	Nick string `toml:"nick"`
	// Owner is the user ID of the bot owner on Twitch.
	Owner string `toml:"owner"`
	// Prefix overrides the bot's command prefix on Twitch.
	Prefix string `toml:"prefix"`
	// Channels is the list of channels to join.
	Channels []string `toml:"channels"`
	// Rate is the global outbound message rate limit.
	Rate Rate `toml:"rate"`
	// Tiers maps user IDs to eminence tier names.
	Tiers map[string]string `toml:"tiers"`
}

// DiscordCfg is the configuration for one bot's Discord connection.
type DiscordCfg struct {
	// TokenFile is the path to a file containing the bot token.
	TokenFile string `toml:"token"`
	// Owner is the user ID of the bot owner on Discord.
	Owner string `toml:"owner"`
	// Prefix overrides the bot's command prefix on Discord.
	Prefix string `toml:"prefix"`
	// Tiers maps user IDs to eminence tier names.
	Tiers map[string]string `toml:"tiers"`
}

// HTTPCfg is the HTTP API configuration.
type HTTPCfg struct {
	// Listen is the address the API server binds.
	Listen string `toml:"listen"`
}

// DBCfg is the configuration of storage backends.
type DBCfg struct {
	// Gestalt is the root of a JSON file tree gestalt store.
	Gestalt string `toml:"gestalt"`
	// KVGestalt is the path of a badger gestalt store.
	KVGestalt string `toml:"kvgestalt"`
	// Journal is the SQLite connection string for the invocation journal.
	Journal string `toml:"journal"`
}

// Rate is a rate limit configuration.
type Rate struct {
	Every float64 `toml:"every"`
	Num   int     `toml:"num"`
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.SecretFile,
		&cfg.TalentDir,
		&cfg.HTTP.Listen,
		&cfg.DB.Gestalt,
		&cfg.DB.KVGestalt,
		&cfg.DB.Journal,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
	for _, b := range cfg.Bots {
		if t := b.Twitch; t != nil {
			t.CID = os.Expand(t.CID, expand)
			t.SecretFile = os.Expand(t.SecretFile, expand)
			t.TokenFile = os.Expand(t.TokenFile, expand)
			t.Nick = os.Expand(t.Nick, expand)
			for i, s := range t.Channels {
				t.Channels[i] = os.Expand(s, expand)
			}
		}
		if d := b.Discord; d != nil {
			d.TokenFile = os.Expand(d.TokenFile, expand)
		}
	}
}
