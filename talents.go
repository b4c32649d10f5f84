package main

import (
	"github.com/aigachu/lavenza/command"
	"github.com/aigachu/lavenza/command/coinflip"
	"github.com/aigachu/lavenza/command/ping"
	"github.com/aigachu/lavenza/talent"
)

// builtins returns the talents compiled into this build.
func builtins() *talent.Registry {
	r := talent.NewRegistry()
	ts := []*talent.Talent{
		{
			Manifest: talent.Manifest{
				Name:        "core",
				Description: "Basic liveness and diagnostics commands.",
				Version:     "1.0.0",
			},
			Commands: []*command.Descriptor{ping.Command()},
		},
		{
			Manifest: talent.Manifest{
				Name:         "games",
				Description:  "Chat games played through prompts.",
				Version:      "1.0.0",
				Dependencies: []string{"core"},
			},
			Commands: []*command.Descriptor{coinflip.Command()},
		},
	}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}
