// Package prompt implements suspended conversational expectations.
//
// A prompt lets a command pause mid-execution and wait for the next message
// from a specific author in a specific channel. The engine owns every active
// prompt for a bot and routes inbound messages to them before normal command
// parsing. A prompt may be reset on invalid input up to a ceiling, and times
// out if no matching message arrives.
package prompt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aigachu/lavenza/client"
)

var (
	// ErrNoResponse is delivered to a prompt's error continuation when its
	// timeout elapses with no matching message.
	ErrNoResponse = errors.New("prompt: no response before timeout")
	// ErrMaxResetsExceeded is delivered when a prompt is reset too many times.
	ErrMaxResetsExceeded = errors.New("prompt: maximum resets exceeded")
	// ErrInvalidResponse is the conventional reason passed to Reset when a
	// reply fails the caller's validation.
	ErrInvalidResponse = errors.New("prompt: invalid response")
	// ErrInFlight is returned by Create when a prompt is already active for
	// the same author and channel.
	ErrInFlight = errors.New("prompt: prompt already active for author and channel")
)

// ResponseFunc handles a routed reply. It may call p.Reset to reject the
// reply and wait again; otherwise the prompt resolves when it returns.
type ResponseFunc func(ctx context.Context, res *client.Resonance, p *Prompt)

// ErrorFunc receives a prompt's terminal error: ErrNoResponse or
// ErrMaxResetsExceeded.
type ErrorFunc func(err error)

type promptKey struct {
	author  string
	channel string
}

type promptState int

const (
	stateActive promptState = iota
	stateHandling
	stateResolved
	stateTimedOut
	stateFailed
)

// Engine tracks the active prompts of one bot.
type Engine struct {
	// OnCreate and OnTimeout, if set, are called once per prompt created and
	// per prompt that expires without a reply. Set them before the engine is
	// shared; they are read without synchronization.
	OnCreate  func()
	OnTimeout func()

	mu     sync.Mutex
	active map[promptKey]*Prompt
}

// NewEngine returns an engine with no active prompts.
func NewEngine() *Engine {
	return &Engine{active: make(map[promptKey]*Prompt)}
}

// Config describes a prompt to create.
type Config struct {
	// AuthorID and ChannelID select the exact sender and channel whose next
	// message the prompt consumes.
	AuthorID  string
	ChannelID string
	// Timeout is the wait budget, restarted on each reset.
	Timeout time.Duration
	// MaxResets is the number of resets tolerated before the prompt fails.
	MaxResets int
	// OnResponse handles the routed reply. Required.
	OnResponse ResponseFunc
	// OnError receives the terminal error on timeout or reset exhaustion.
	// It may be nil, in which case those outcomes are silent.
	OnError ErrorFunc
}

// Prompt is one pending expectation. Its exported methods are safe for
// concurrent use.
type Prompt struct {
	engine *Engine
	key    promptKey

	onResponse ResponseFunc
	onError    ErrorFunc
	timeout    time.Duration
	maxResets  int

	// The fields below are guarded by engine.mu, except requestReset and
	// resetReason which only the routing goroutine touches while the prompt
	// is in stateHandling.
	state        promptState
	timer        *time.Timer
	resets       int
	requestReset bool
	resetReason  error
}

// Create registers a new active prompt. Only one prompt may be active for a
// given (author, channel) pair; creating a second fails with ErrInFlight
// rather than silently replacing the first, so the routing of the pair's
// next message is never ambiguous.
func (e *Engine) Create(cfg Config) (*Prompt, error) {
	if cfg.OnResponse == nil {
		return nil, errors.New("prompt: nil OnResponse")
	}
	k := promptKey{author: cfg.AuthorID, channel: cfg.ChannelID}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.active[k]; ok {
		return nil, ErrInFlight
	}
	p := &Prompt{
		engine:     e,
		key:        k,
		onResponse: cfg.OnResponse,
		onError:    cfg.OnError,
		timeout:    cfg.Timeout,
		maxResets:  cfg.MaxResets,
		state:      stateActive,
	}
	p.timer = time.AfterFunc(p.timeout, p.fire)
	e.active[k] = p
	if e.OnCreate != nil {
		e.OnCreate()
	}
	return p, nil
}

// Route offers an inbound message to the active prompts. If a prompt is
// waiting on the message's (author, channel) pair, the message is consumed:
// the pending timeout is cancelled, the prompt's response continuation runs,
// and Route reports true so the caller skips command parsing. Otherwise
// Route reports false and the message proceeds down the normal pipeline.
func (e *Engine) Route(ctx context.Context, res *client.Resonance) bool {
	k := promptKey{author: res.AuthorID, channel: res.ChannelID}
	e.mu.Lock()
	p := e.active[k]
	if p == nil || p.state != stateActive {
		e.mu.Unlock()
		return false
	}
	p.timer.Stop()
	p.state = stateHandling
	e.mu.Unlock()

	p.requestReset = false
	p.resetReason = nil
	p.onResponse(ctx, res, p)
	p.finish()
	return true
}

// Reset signals that the routed reply was invalid and the prompt should wait
// for another. It must only be called from within the prompt's response
// continuation. The timeout restarts on reset; once resets reach the
// configured ceiling, the prompt fails instead and the error continuation
// receives ErrMaxResetsExceeded.
func (p *Prompt) Reset(reason error) {
	p.requestReset = true
	p.resetReason = reason
}

// Resets returns the number of resets performed so far.
func (p *Prompt) Resets() int {
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	return p.resets
}

// Cancel withdraws an active prompt without invoking either continuation.
// It is a no-op if the prompt already finished.
func (p *Prompt) Cancel() {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.state != stateActive {
		return
	}
	p.timer.Stop()
	p.state = stateFailed
	delete(e.active, p.key)
}

// Active reports whether a prompt is waiting on the given pair.
func (e *Engine) Active(authorID, channelID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[promptKey{author: authorID, channel: channelID}]
	return ok
}

// Len returns the number of prompts the engine currently owns.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// finish settles a prompt after its response continuation returns, either
// resolving it, restarting its timer for a reset, or failing it when resets
// are exhausted.
func (p *Prompt) finish() {
	e := p.engine
	e.mu.Lock()
	if p.state != stateHandling {
		e.mu.Unlock()
		return
	}
	if !p.requestReset {
		p.state = stateResolved
		delete(e.active, p.key)
		e.mu.Unlock()
		return
	}
	p.resets++
	if p.resets >= p.maxResets {
		p.state = stateFailed
		delete(e.active, p.key)
		e.mu.Unlock()
		if p.onError != nil {
			p.onError(ErrMaxResetsExceeded)
		}
		return
	}
	p.state = stateActive
	p.timer = time.AfterFunc(p.timeout, p.fire)
	e.mu.Unlock()
}

// fire handles timer expiry. A timeout fires at most once: if a message was
// routed or the prompt was cancelled before we took the lock, this is a
// no-op.
func (p *Prompt) fire() {
	e := p.engine
	e.mu.Lock()
	if p.state != stateActive {
		e.mu.Unlock()
		return
	}
	p.state = stateTimedOut
	delete(e.active, p.key)
	e.mu.Unlock()
	if e.OnTimeout != nil {
		e.OnTimeout()
	}
	if p.onError != nil {
		p.onError(ErrNoResponse)
	}
}
