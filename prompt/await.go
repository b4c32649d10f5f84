package prompt

import (
	"context"
	"time"

	"github.com/aigachu/lavenza/client"
)

// Await registers a prompt for the given pair and blocks until a reply
// arrives, the timeout elapses, or ctx is cancelled. It is the synchronous
// form of Create for command bodies that read like straight-line code.
func (e *Engine) Await(ctx context.Context, authorID, channelID string, timeout time.Duration) (*client.Resonance, error) {
	return e.AwaitValid(ctx, authorID, channelID, timeout, 0, nil)
}

// AwaitValid is Await with validation. Replies rejected by valid reset the
// prompt, up to maxResets, before the whole wait fails with
// ErrMaxResetsExceeded. A nil valid accepts every reply.
func (e *Engine) AwaitValid(ctx context.Context, authorID, channelID string, timeout time.Duration, maxResets int, valid func(*client.Resonance) error) (*client.Resonance, error) {
	type outcome struct {
		res *client.Resonance
		err error
	}
	ch := make(chan outcome, 1)
	p, err := e.Create(Config{
		AuthorID:  authorID,
		ChannelID: channelID,
		Timeout:   timeout,
		MaxResets: maxResets,
		OnResponse: func(ctx context.Context, res *client.Resonance, p *Prompt) {
			if valid != nil {
				if err := valid(res); err != nil {
					p.Reset(err)
					return
				}
			}
			ch <- outcome{res: res}
		},
		OnError: func(err error) {
			ch <- outcome{err: err}
		},
	})
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		p.Cancel()
		return nil, ctx.Err()
	case o := <-ch:
		return o.res, o.err
	}
}
