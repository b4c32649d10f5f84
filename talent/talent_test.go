package talent_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/talent"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(strings.Builder), nil))
}

func registry(t *testing.T, ts ...*talent.Talent) *talent.Registry {
	t.Helper()
	r := talent.NewRegistry()
	for _, tal := range ts {
		if err := r.Register(tal); err != nil {
			t.Fatalf("couldn't register %s: %v", tal.Manifest.Name, err)
		}
	}
	return r
}

func TestRegister(t *testing.T) {
	r := registry(t, &talent.Talent{Manifest: talent.Manifest{Name: "core"}})
	if err := r.Register(&talent.Talent{Manifest: talent.Manifest{Name: "core"}}); err == nil {
		t.Error("registered twice")
	}
	if err := r.Register(&talent.Talent{}); err == nil {
		t.Error("registered unnamed talent")
	}
	if _, ok := r.Lookup("core"); !ok {
		t.Error("core lost")
	}
}

func TestGrant(t *testing.T) {
	ping := &command.Descriptor{Key: "ping"}
	r := registry(t,
		&talent.Talent{
			Manifest: talent.Manifest{Name: "examples", Clients: []client.Type{client.Twitch}},
			Commands: []*command.Descriptor{ping},
		},
	)
	cat := command.NewCatalogue()
	if err := talent.Grant(context.Background(), testLog(), r, []string{"examples"}, cat); err != nil {
		t.Fatalf("couldn't grant: %v", err)
	}
	d, ok := cat.Lookup("ping")
	if !ok {
		t.Fatal("ping not granted")
	}
	if d == ping {
		t.Error("granted descriptor not copied")
	}
	// The talent's allow-list rides along.
	if d.Allowed(client.Discord) {
		t.Error("talent scope not applied")
	}
	if !d.Allowed(client.Twitch) {
		t.Error("talent scope too strict")
	}
}

func TestGrantDependencies(t *testing.T) {
	r := registry(t,
		&talent.Talent{Manifest: talent.Manifest{Name: "base"}},
		&talent.Talent{Manifest: talent.Manifest{Name: "games", Dependencies: []string{"base"}}},
	)
	cat := command.NewCatalogue()
	ctx := context.Background()
	if err := talent.Grant(ctx, testLog(), r, []string{"games"}, cat); err == nil {
		t.Error("granted with missing dependency")
	}
	if err := talent.Grant(ctx, testLog(), r, []string{"base", "games"}, cat); err != nil {
		t.Errorf("couldn't grant with dependency present: %v", err)
	}
	if err := talent.Grant(ctx, testLog(), r, []string{"ghost"}, cat); err == nil {
		t.Error("granted unregistered talent")
	}
}

func TestLoadOverlays(t *testing.T) {
	r := registry(t, &talent.Talent{
		Manifest: talent.Manifest{Name: "examples", Description: "stock", Version: "1"},
	})
	dir := t.TempDir()
	overlay := "name: renamed\ndescription: custom\nclients: [discord]\n"
	if err := os.WriteFile(filepath.Join(dir, "examples.yml"), []byte(overlay), 0o644); err != nil {
		t.Fatalf("couldn't write overlay: %v", err)
	}
	if err := r.LoadOverlays(dir); err != nil {
		t.Fatalf("couldn't load overlays: %v", err)
	}
	tal, _ := r.Lookup("examples")
	if tal == nil {
		t.Fatal("talent renamed by overlay")
	}
	if tal.Manifest.Description != "custom" {
		t.Errorf("description not overlaid: %q", tal.Manifest.Description)
	}
	// Fields absent from the file keep their compiled-in values.
	if tal.Manifest.Version != "1" {
		t.Errorf("version lost: %q", tal.Manifest.Version)
	}
	if len(tal.Manifest.Clients) != 1 || tal.Manifest.Clients[0] != client.Discord {
		t.Errorf("clients not overlaid: %v", tal.Manifest.Clients)
	}
}
