package ping_test

import (
	"context"
	"testing"
	"time"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/command/ping"
	"github.com/aigachu/lavenza/eminence"
	"github.com/aigachu/lavenza/flavor"
	"github.com/aigachu/lavenza/prompt"
)

// chat is a minimal client capturing sent messages.
type chat struct {
	sent []string
}

func (c *chat) Type() client.Type { return client.Twitch }

func (c *chat) Send(ctx context.Context, channelID, text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func (c *chat) Whisper(ctx context.Context, userID, text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func (c *chat) CommandPrefix() string { return "" }

func (c *chat) TypeFor(ctx context.Context, channelID string, d time.Duration) {}

func (c *chat) ResolveTier(ctx context.Context, r *client.Resonance) (eminence.Tier, error) {
	return eminence.None, nil
}

func env(c *chat) *command.Env {
	return &command.Env{
		Bot:     "bocchi",
		Client:  c,
		Prompts: prompt.NewEngine(),
		Flavor:  flavor.New(nil),
	}
}

func TestPing(t *testing.T) {
	d := ping.Command()
	c := &chat{}
	res := &client.Resonance{AuthorID: "ryou", ChannelID: "#kessoku", Client: client.Twitch}
	args := &command.Arguments{Flags: map[string]bool{}, Options: map[string]string{}}
	if err := d.Exec(context.Background(), env(c), res, args); err != nil {
		t.Fatalf("couldn't ping: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] == "" {
		t.Errorf("wrong replies: %v", c.sent)
	}
	quiet := c.sent[0]
	c.sent = nil
	args.Flags["loud"] = true
	if err := d.Exec(context.Background(), env(c), res, args); err != nil {
		t.Fatalf("couldn't ping loudly: %v", err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("wrong replies: %v", c.sent)
	}
	if c.sent[0] == quiet {
		t.Errorf("loud reply unchanged: %q", c.sent[0])
	}
}
