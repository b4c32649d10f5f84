package prompt_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/prompt"
)

func message(author, channel, text string) *client.Resonance {
	return &client.Resonance{
		AuthorID:  author,
		ChannelID: channel,
		Text:      text,
		Client:    client.Twitch,
	}
}

func TestCreateSingleFlight(t *testing.T) {
	e := prompt.NewEngine()
	resp := func(ctx context.Context, res *client.Resonance, p *prompt.Prompt) {}
	p, err := e.Create(prompt.Config{AuthorID: "bocchi", ChannelID: "#kessoku", Timeout: time.Minute, OnResponse: resp})
	if err != nil {
		t.Fatalf("couldn't create first prompt: %v", err)
	}
	if _, err := e.Create(prompt.Config{AuthorID: "bocchi", ChannelID: "#kessoku", Timeout: time.Minute, OnResponse: resp}); !errors.Is(err, prompt.ErrInFlight) {
		t.Errorf("duplicate create error: want %v, got %v", prompt.ErrInFlight, err)
	}
	// A different author or channel is a different prompt.
	if _, err := e.Create(prompt.Config{AuthorID: "ryou", ChannelID: "#kessoku", Timeout: time.Minute, OnResponse: resp}); err != nil {
		t.Errorf("couldn't create prompt for other author: %v", err)
	}
	if _, err := e.Create(prompt.Config{AuthorID: "bocchi", ChannelID: "#sickhack", Timeout: time.Minute, OnResponse: resp}); err != nil {
		t.Errorf("couldn't create prompt for other channel: %v", err)
	}
	p.Cancel()
	if _, err := e.Create(prompt.Config{AuthorID: "bocchi", ChannelID: "#kessoku", Timeout: time.Minute, OnResponse: resp}); err != nil {
		t.Errorf("couldn't create prompt after cancel: %v", err)
	}
}

func TestRouteConsumes(t *testing.T) {
	e := prompt.NewEngine()
	var got atomic.Int32
	_, err := e.Create(prompt.Config{
		AuthorID:  "bocchi",
		ChannelID: "#kessoku",
		Timeout:   time.Minute,
		OnResponse: func(ctx context.Context, res *client.Resonance, p *prompt.Prompt) {
			got.Add(1)
			if res.Text != "yes" {
				t.Errorf("routed wrong message: %q", res.Text)
			}
		},
	})
	if err != nil {
		t.Fatalf("couldn't create prompt: %v", err)
	}
	if e.Route(context.Background(), message("ryou", "#kessoku", "no")) {
		t.Error("consumed message from wrong author")
	}
	if e.Route(context.Background(), message("bocchi", "#sickhack", "no")) {
		t.Error("consumed message from wrong channel")
	}
	if !e.Route(context.Background(), message("bocchi", "#kessoku", "yes")) {
		t.Error("didn't consume matching message")
	}
	if got.Load() != 1 {
		t.Errorf("response continuation ran %d times, want 1", got.Load())
	}
	// The prompt resolved; the pair's next message is not consumed.
	if e.Route(context.Background(), message("bocchi", "#kessoku", "yes")) {
		t.Error("consumed message after prompt resolved")
	}
	if e.Len() != 0 {
		t.Errorf("engine still owns %d prompts", e.Len())
	}
}

func TestTimeout(t *testing.T) {
	e := prompt.NewEngine()
	errs := make(chan error, 1)
	_, err := e.Create(prompt.Config{
		AuthorID:   "bocchi",
		ChannelID:  "#kessoku",
		Timeout:    20 * time.Millisecond,
		OnResponse: func(ctx context.Context, res *client.Resonance, p *prompt.Prompt) { t.Error("response continuation ran") },
		OnError:    func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatalf("couldn't create prompt: %v", err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, prompt.ErrNoResponse) {
			t.Errorf("timeout error: want %v, got %v", prompt.ErrNoResponse, err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	if e.Route(context.Background(), message("bocchi", "#kessoku", "late")) {
		t.Error("consumed message after timeout")
	}
}

func TestResetRestartsTimeout(t *testing.T) {
	e := prompt.NewEngine()
	errs := make(chan error, 1)
	_, err := e.Create(prompt.Config{
		AuthorID:  "bocchi",
		ChannelID: "#kessoku",
		Timeout:   60 * time.Millisecond,
		MaxResets: 5,
		OnResponse: func(ctx context.Context, res *client.Resonance, p *prompt.Prompt) {
			p.Reset(prompt.ErrInvalidResponse)
		},
		OnError: func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatalf("couldn't create prompt: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if !e.Route(context.Background(), message("bocchi", "#kessoku", "garbage")) {
		t.Fatal("didn't consume reply")
	}
	// The reset restarted the wait budget, so the original deadline passing
	// doesn't fire the timeout.
	time.Sleep(40 * time.Millisecond)
	select {
	case err := <-errs:
		t.Fatalf("prompt errored early: %v", err)
	default:
	}
	select {
	case err := <-errs:
		if !errors.Is(err, prompt.ErrNoResponse) {
			t.Errorf("timeout error: want %v, got %v", prompt.ErrNoResponse, err)
		}
	case <-time.After(time.Second):
		t.Fatal("restarted timeout never fired")
	}
}

func TestResetCeiling(t *testing.T) {
	e := prompt.NewEngine()
	var responses atomic.Int32
	errs := make(chan error, 2)
	_, err := e.Create(prompt.Config{
		AuthorID:  "bocchi",
		ChannelID: "#kessoku",
		Timeout:   time.Minute,
		MaxResets: 2,
		OnResponse: func(ctx context.Context, res *client.Resonance, p *prompt.Prompt) {
			responses.Add(1)
			p.Reset(prompt.ErrInvalidResponse)
		},
		OnError: func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatalf("couldn't create prompt: %v", err)
	}
	consumed := 0
	for i := 0; i < 3; i++ {
		if e.Route(context.Background(), message("bocchi", "#kessoku", "garbage")) {
			consumed++
		}
	}
	if consumed != 2 {
		t.Errorf("consumed %d replies, want 2", consumed)
	}
	if responses.Load() != 2 {
		t.Errorf("response continuation ran %d times, want 2", responses.Load())
	}
	select {
	case err := <-errs:
		if !errors.Is(err, prompt.ErrMaxResetsExceeded) {
			t.Errorf("ceiling error: want %v, got %v", prompt.ErrMaxResetsExceeded, err)
		}
	default:
		t.Fatal("error continuation never ran")
	}
	select {
	case err := <-errs:
		t.Errorf("error continuation ran again: %v", err)
	default:
	}
	if e.Len() != 0 {
		t.Errorf("engine still owns %d prompts", e.Len())
	}
}

func TestAwait(t *testing.T) {
	e := prompt.NewEngine()
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := e.Await(context.Background(), "bocchi", "#kessoku", time.Minute)
		if err != nil {
			t.Errorf("await failed: %v", err)
			return
		}
		if res.Text != "guitar" {
			t.Errorf("await got %q, want %q", res.Text, "guitar")
		}
	}()
	for !e.Active("bocchi", "#kessoku") {
		time.Sleep(time.Millisecond)
	}
	if !e.Route(context.Background(), message("bocchi", "#kessoku", "guitar")) {
		t.Fatal("didn't consume reply")
	}
	<-done
}

func TestAwaitValid(t *testing.T) {
	e := prompt.NewEngine()
	valid := func(res *client.Resonance) error {
		if res.Text != "heads" && res.Text != "tails" {
			return prompt.ErrInvalidResponse
		}
		return nil
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := e.AwaitValid(context.Background(), "bocchi", "#kessoku", time.Minute, 3, valid)
		if err != nil {
			t.Errorf("await failed: %v", err)
			return
		}
		if res.Text != "tails" {
			t.Errorf("await got %q, want %q", res.Text, "tails")
		}
	}()
	for !e.Active("bocchi", "#kessoku") {
		time.Sleep(time.Millisecond)
	}
	e.Route(context.Background(), message("bocchi", "#kessoku", "sideways"))
	e.Route(context.Background(), message("bocchi", "#kessoku", "tails"))
	<-done
}

func TestAwaitContextCancel(t *testing.T) {
	e := prompt.NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Await(ctx, "bocchi", "#kessoku", time.Minute)
		done <- err
	}()
	for !e.Active("bocchi", "#kessoku") {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("await error: want %v, got %v", context.Canceled, err)
	}
	if e.Len() != 0 {
		t.Errorf("engine still owns %d prompts after cancel", e.Len())
	}
}
