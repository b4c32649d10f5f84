package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Catalogue is a bot's set of invocable commands, looked up by key or alias.
// Registration happens at startup; lookups are read-only after that and safe
// for concurrent use.
type Catalogue struct {
	byName map[string]*Descriptor
	list   []*Descriptor
}

// NewCatalogue returns an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{byName: make(map[string]*Descriptor)}
}

// Register adds a descriptor to the catalogue. A key or alias that collides
// with an already registered name is logged and skipped rather than
// replacing the earlier registration, so grant order never silently changes
// which command a name invokes.
func (c *Catalogue) Register(ctx context.Context, log *slog.Logger, d *Descriptor) {
	key := strings.ToLower(d.Key)
	if prev, ok := c.byName[key]; ok {
		log.WarnContext(ctx, "duplicate command key", slog.String("key", d.Key), slog.String("kept", prev.Key))
		return
	}
	c.byName[key] = d
	c.list = append(c.list, d)
	for _, a := range d.Aliases {
		a = strings.ToLower(a)
		if prev, ok := c.byName[a]; ok {
			log.WarnContext(ctx, "duplicate command alias", slog.String("alias", a), slog.String("kept", prev.Key), slog.String("skipped", d.Key))
			continue
		}
		c.byName[a] = d
	}
}

// Lookup finds a command by key or alias, case-insensitively.
func (c *Catalogue) Lookup(name string) (*Descriptor, bool) {
	d, ok := c.byName[strings.ToLower(name)]
	return d, ok
}

// All returns every registered descriptor sorted by key.
func (c *Catalogue) All() []*Descriptor {
	out := make([]*Descriptor, len(c.list))
	copy(out, c.list)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of registered commands, not counting aliases.
func (c *Catalogue) Len() int {
	return len(c.list)
}
