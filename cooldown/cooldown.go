// Package cooldown tracks command cooldowns by signature.
//
// A signature names a cooldown scope: the bot that heard a command, the
// client it was heard on, the command key, and optionally the invoking user.
// A signature present in the registry means the corresponding invocation is
// currently forbidden; absence means it is permitted. Entries remove
// themselves once their duration elapses. The registry holds no state across
// process restarts.
package cooldown

import (
	"strings"
	"sync"
	"time"
)

// Registry is a set of armed cooldown signatures with expiry timers.
// The zero value is not usable; use [New].
type Registry struct {
	mu    sync.Mutex
	armed map[string]*time.Timer
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{armed: make(map[string]*time.Timer)}
}

// Arm inserts a signature and schedules its removal after d. Arming an
// already armed signature replaces its timer, so the most recent duration
// wins. A nonpositive duration means no cooldown and is a no-op.
func (r *Registry) Arm(sig string, d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.armed[sig]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// Only remove if we are still the active timer; a re-arm may have
		// replaced us while we waited for the lock.
		if r.armed[sig] == t {
			delete(r.armed, sig)
		}
	})
	r.armed[sig] = t
}

// IsArmed reports whether a signature is currently armed.
func (r *Registry) IsArmed(sig string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.armed[sig]
	return ok
}

// Disarm removes a signature before its duration elapses.
func (r *Registry) Disarm(sig string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.armed[sig]; ok {
		t.Stop()
		delete(r.armed, sig)
	}
}

// Len returns the number of armed signatures.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.armed)
}

// Signature composes a cooldown signature. The base signature identifies the
// bot, client, and command; supplements narrow the scope further, e.g. to a
// single user for per-user cooldowns.
func Signature(botID, clientType, commandKey string, supplements ...string) string {
	parts := append([]string{botID, clientType, commandKey}, supplements...)
	return strings.Join(parts, "::")
}
