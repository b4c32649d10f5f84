package twitchc_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/time/rate"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/client/twitchc"
	"github.com/aigachu/lavenza/eminence"
)

func TestSend(t *testing.T) {
	send := make(chan *tmi.Message, 1)
	c := twitchc.New(twitchc.Config{
		Name: "bocchi",
		Rate: rate.NewLimiter(rate.Inf, 1),
	}, send)
	if err := c.Send(context.Background(), "#kessoku", "wake up"); err != nil {
		t.Fatalf("couldn't send: %v", err)
	}
	msg := <-send
	if got := msg.To(); got != "#kessoku" {
		t.Errorf("sent to wrong channel: want %q, got %q", "#kessoku", got)
	}
	if got := msg.Trailing; got != "wake up" {
		t.Errorf("sent wrong text: want %q, got %q", "wake up", got)
	}
}

func TestSendCanceled(t *testing.T) {
	send := make(chan *tmi.Message)
	c := twitchc.New(twitchc.Config{
		Name: "bocchi",
		Rate: rate.NewLimiter(rate.Inf, 1),
	}, send)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Send(ctx, "#kessoku", "wake up"); err == nil {
		t.Error("send succeeded with canceled context")
	}
}

func TestResolveTier(t *testing.T) {
	cases := []struct {
		name string
		r    client.Resonance
		want eminence.Tier
	}{
		{
			name: "plain",
			r:    client.Resonance{AuthorID: "1", AuthorName: "bocchi", ChannelID: "#kessoku"},
			want: eminence.None,
		},
		{
			name: "configured",
			r:    client.Resonance{AuthorID: "2", AuthorName: "ryou", ChannelID: "#kessoku"},
			want: eminence.Moderator,
		},
		{
			name: "mod",
			r:    client.Resonance{AuthorID: "3", AuthorName: "nijika", ChannelID: "#kessoku", IsModerator: true},
			want: eminence.Moderator,
		},
		{
			name: "broadcaster",
			r:    client.Resonance{AuthorID: "4", AuthorName: "kessoku", ChannelID: "#kessoku"},
			want: eminence.Admin,
		},
		{
			name: "configured-over-mod",
			r:    client.Resonance{AuthorID: "5", AuthorName: "kita", ChannelID: "#kessoku", IsModerator: true},
			want: eminence.Admin,
		},
	}
	c := twitchc.New(twitchc.Config{
		Name: "bot",
		Rate: rate.NewLimiter(rate.Inf, 1),
		Tiers: map[string]eminence.Tier{
			"2": eminence.Moderator,
			"5": eminence.Admin,
		},
	}, make(chan *tmi.Message, 1))
	for _, c2 := range cases {
		t.Run(c2.name, func(t *testing.T) {
			got, err := c.ResolveTier(context.Background(), &c2.r)
			if err != nil {
				t.Fatalf("couldn't resolve tier: %v", err)
			}
			if got != c2.want {
				t.Errorf("wrong tier: want %v, got %v", c2.want, got)
			}
		})
	}
}

func TestResonance(t *testing.T) {
	raw := `@badge-info=;badges=;display-name=Someone;id=a74eb158-9732-4e6f-9150-2648cdf3c902;mod=1;room-id=12345678;tmi-sent-ts=1662882968379;user-id=123456789 :someone!someone@someone.tmi.twitch.tv PRIVMSG #channel :hello, world!`
	msg, err := tmi.Parse(strings.NewReader(raw + "\r\n"))
	if err != nil && err != io.EOF {
		t.Fatalf("couldn't parse message: %v", err)
	}
	got := twitchc.Resonance(msg)
	want := &client.Resonance{
		ID:          "a74eb158-9732-4e6f-9150-2648cdf3c902",
		AuthorID:    "123456789",
		AuthorName:  "Someone",
		ChannelID:   "#channel",
		Text:        "hello, world!",
		Client:      client.Twitch,
		IsModerator: true,
		Timestamp:   1662882968379,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong resonance (-want +got):\n%s", diff)
	}
}

func TestResonanceBroadcaster(t *testing.T) {
	raw := `@display-name=Channel;id=x;mod=0;tmi-sent-ts=0;user-id=12345678 :channel!channel@channel.tmi.twitch.tv PRIVMSG #channel :hi`
	msg, err := tmi.Parse(strings.NewReader(raw + "\r\n"))
	if err != nil && err != io.EOF {
		t.Fatalf("couldn't parse message: %v", err)
	}
	got := twitchc.Resonance(msg)
	if !got.IsModerator {
		t.Error("broadcaster not marked moderator")
	}
}
