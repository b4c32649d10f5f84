// Package talent groups commands into grantable feature bundles.
//
// A talent's code is compiled in and registered at startup; its manifest may
// be overlaid from a YAML file on disk so operators can rename, describe,
// and scope bundles without rebuilding. Bots are granted talents by name,
// and a grant carries the talent's client allow-list down onto every
// command it contains.
package talent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
)

// Manifest describes a talent.
type Manifest struct {
	// Name is the grant name. It is fixed at registration; an overlay
	// cannot rename a talent out from under bot configs.
	Name string `yaml:"name"`
	// Description is shown to operators.
	Description string `yaml:"description"`
	// Version is informational.
	Version string `yaml:"version"`
	// Clients is the allow-list applied to every command in the bundle.
	// Empty or wildcard means every client.
	Clients []client.Type `yaml:"clients"`
	// Dependencies names talents that must be granted alongside this one.
	Dependencies []string `yaml:"dependencies"`
}

// Talent is a feature bundle: a manifest plus the commands it grants.
type Talent struct {
	Manifest Manifest
	Commands []*command.Descriptor
}

// Registry holds the talents compiled into the process.
type Registry struct {
	byName map[string]*Talent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Talent)}
}

// Register adds a talent. Registering two talents with the same name is a
// programming error.
func (r *Registry) Register(t *Talent) error {
	if t.Manifest.Name == "" {
		return errors.New("talent: unnamed talent")
	}
	if _, ok := r.byName[t.Manifest.Name]; ok {
		return fmt.Errorf("talent: %s registered twice", t.Manifest.Name)
	}
	r.byName[t.Manifest.Name] = t
	return nil
}

// Lookup finds a talent by name.
func (r *Registry) Lookup(name string) (*Talent, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// All returns every registered talent sorted by name.
func (r *Registry) All() []*Talent {
	out := make([]*Talent, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// LoadOverlays merges on-disk manifests over the registered ones. For each
// registered talent, dir/<name>.yml is read if it exists; fields set in the
// file win, except Name. A missing file leaves the compiled-in manifest as
// is.
func (r *Registry) LoadOverlays(dir string) error {
	for name, t := range r.byName {
		b, err := os.ReadFile(filepath.Join(dir, name+".yml"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return fmt.Errorf("couldn't read manifest for %s: %w", name, err)
		}
		var m Manifest
		if err := yaml.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("couldn't decode manifest for %s: %w", name, err)
		}
		if m.Description != "" {
			t.Manifest.Description = m.Description
		}
		if m.Version != "" {
			t.Manifest.Version = m.Version
		}
		if m.Clients != nil {
			t.Manifest.Clients = m.Clients
		}
		if m.Dependencies != nil {
			t.Manifest.Dependencies = m.Dependencies
		}
	}
	return nil
}

// Grant registers the commands of the named talents into a catalogue. Every
// dependency of a granted talent must itself appear in names. Each granted
// command carries its talent's client allow-list.
func Grant(ctx context.Context, log *slog.Logger, r *Registry, names []string, cat *command.Catalogue) error {
	granted := make(map[string]bool, len(names))
	for _, name := range names {
		granted[name] = true
	}
	for _, name := range names {
		t, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("talent: %s is not registered", name)
		}
		for _, dep := range t.Manifest.Dependencies {
			if !granted[dep] {
				return fmt.Errorf("talent: %s requires %s", name, dep)
			}
		}
		for _, d := range t.Commands {
			// Copy so one descriptor can serve many bots with different
			// talent scopes.
			g := *d
			g.TalentClients = t.Manifest.Clients
			cat.Register(ctx, log, &g)
		}
		log.InfoContext(ctx, "granted talent", slog.String("talent", name), slog.Int("commands", len(t.Commands)))
	}
	return nil
}
