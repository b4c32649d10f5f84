package instruction_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/instruction"
)

func catalogue(t *testing.T, ds ...*command.Descriptor) *command.Catalogue {
	t.Helper()
	log := slog.New(slog.NewTextHandler(new(strings.Builder), nil))
	c := command.NewCatalogue()
	for _, d := range ds {
		c.Register(context.Background(), log, d)
	}
	return c
}

func TestParse(t *testing.T) {
	ping := &command.Descriptor{Key: "ping", Aliases: []string{"pong"}}
	dmOnly := &command.Descriptor{Key: "roll", AllowedClients: []client.Type{client.Discord}}
	cat := catalogue(t, ping, dmOnly)
	cases := []struct {
		name string
		text string
		t    client.Type
		cmd  *command.Descriptor
		raw  string
	}{
		{name: "glued", text: "!ping hello", t: client.Twitch, cmd: ping, raw: "hello"},
		{name: "spaced", text: "! ping hello", t: client.Twitch, cmd: ping, raw: "hello"},
		{name: "alias", text: "!pong hello", t: client.Twitch, cmd: ping, raw: "hello"},
		{name: "case", text: "!PING", t: client.Twitch, cmd: ping, raw: ""},
		{name: "bare-prefix", text: "!", t: client.Twitch, cmd: nil},
		{name: "unknown", text: "!pingextra", t: client.Twitch, cmd: nil},
		{name: "no-prefix", text: "ping hello", t: client.Twitch, cmd: nil},
		{name: "empty", text: "", t: client.Twitch, cmd: nil},
		{name: "allowed-client", text: "!roll", t: client.Discord, cmd: dmOnly, raw: ""},
		{name: "disallowed-client", text: "!roll", t: client.Twitch, cmd: nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := instruction.Parse(cat, "!", c.t, c.text)
			if c.cmd == nil {
				if in != nil {
					t.Fatalf("unexpected instruction: %+v", in)
				}
				return
			}
			if in == nil {
				t.Fatal("no instruction")
			}
			if in.Command != c.cmd {
				t.Errorf("wrong command: want %q, got %q", c.cmd.Key, in.Command.Key)
			}
			if in.Args.Raw != c.raw {
				t.Errorf("wrong raw text: want %q, got %q", c.raw, in.Args.Raw)
			}
		})
	}
}

func TestParseLongPrefix(t *testing.T) {
	ping := &command.Descriptor{Key: "ping"}
	cat := catalogue(t, ping)
	if in := instruction.Parse(cat, "$$", client.Twitch, "$$ping"); in == nil || in.Command != ping {
		t.Errorf("multi-rune prefix failed: %+v", in)
	}
	if in := instruction.Parse(cat, "$$", client.Twitch, "$ping"); in != nil {
		t.Errorf("partial prefix matched: %+v", in)
	}
}

func TestParseArguments(t *testing.T) {
	ping := &command.Descriptor{Key: "ping"}
	cat := catalogue(t, ping)
	cases := []struct {
		name       string
		text       string
		flags      map[string]bool
		options    map[string]string
		positional []string
	}{
		{
			name:       "positional",
			text:       "!ping one two",
			flags:      map[string]bool{},
			options:    map[string]string{},
			positional: []string{"one", "two"},
		},
		{
			name:    "long-flag",
			text:    "!ping --loud",
			flags:   map[string]bool{"loud": true},
			options: map[string]string{},
		},
		{
			name:    "long-option",
			text:    "!ping --times 3",
			flags:   map[string]bool{},
			options: map[string]string{"times": "3"},
		},
		{
			name:    "equals-option",
			text:    "!ping --times=3",
			flags:   map[string]bool{},
			options: map[string]string{"times": "3"},
		},
		{
			name:    "short-option",
			text:    "!ping -n 3",
			flags:   map[string]bool{},
			options: map[string]string{"n": "3"},
		},
		{
			name:    "grouped-shorts",
			text:    "!ping -lq",
			flags:   map[string]bool{"l": true, "q": true},
			options: map[string]string{},
		},
		{
			name:       "mixed",
			text:       "!ping hello --loud -n 3 world",
			flags:      map[string]bool{"loud": true},
			options:    map[string]string{"n": "3"},
			positional: []string{"hello", "world"},
		},
		{
			name:    "flag-before-flag",
			text:    "!ping --loud --quiet",
			flags:   map[string]bool{"loud": true, "quiet": true},
			options: map[string]string{},
		},
		{
			name:       "terminator",
			text:       "!ping -- --loud",
			flags:      map[string]bool{},
			options:    map[string]string{},
			positional: []string{"--loud"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := instruction.Parse(cat, "!", client.Twitch, c.text)
			if in == nil {
				t.Fatal("no instruction")
			}
			if diff := cmp.Diff(c.flags, in.Args.Flags); diff != "" {
				t.Errorf("wrong flags (+got/-want):\n%s", diff)
			}
			if diff := cmp.Diff(c.options, in.Args.Options); diff != "" {
				t.Errorf("wrong options (+got/-want):\n%s", diff)
			}
			if diff := cmp.Diff(c.positional, in.Args.Positional); diff != "" {
				t.Errorf("wrong positional (+got/-want):\n%s", diff)
			}
		})
	}
}
