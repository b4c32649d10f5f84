// Package flavor gives bot responses their personality.
//
// A flavor set is a group of named weighted phrase distributions: cooldown
// notices, denial notices, prompt nags, and whatever else a bot's config
// defines. Commands and the dispatch pipeline pick from them instead of
// hard-coding response strings.
package flavor

import (
	"math/rand/v2"

	"gitlab.com/zephyrtronium/pick"
)

// Set holds the named distributions of one bot.
type Set struct {
	dists map[string]*pick.Dist[string]
}

// Default phrase groups. Bot configs add weight to these or drown them out
// with their own phrasing.
var defaults = map[string]map[string]int{
	"cooldown": {
		"Patience. That command needs a moment to recharge.": 3,
		"Not so fast.": 2,
		"Give it a second.": 2,
	},
	"denial": {
		"You can't use that here.":   3,
		"That one's not for you.":    2,
		"Ask someone with more rank.": 1,
	},
	"prompt.timeout": {
		"Too slow. Never mind.":     3,
		"I waited. Nothing came.":   2,
	},
	"prompt.invalid": {
		"That's not an answer I can use. Try again.": 3,
		"Hm? Try that answer again.":                 2,
	},
}

// New builds a set from config groups laid over the defaults. Weights for
// the same phrase accumulate.
func New(groups map[string]map[string]int) *Set {
	s := &Set{dists: make(map[string]*pick.Dist[string], len(defaults)+len(groups))}
	for name, m := range defaults {
		s.dists[name] = pick.New(pick.FromMap(mergemaps(m, groups[name])))
	}
	for name, m := range groups {
		if _, ok := defaults[name]; ok {
			continue
		}
		s.dists[name] = pick.New(pick.FromMap(m))
	}
	return s
}

// Pick returns a phrase from the named group, or the empty string when the
// group doesn't exist or has no weight.
func (s *Set) Pick(name string) string {
	d := s.dists[name]
	if d == nil {
		return ""
	}
	return d.Pick(rand.Uint32())
}

// Has reports whether the named group exists.
func (s *Set) Has(name string) bool {
	return s.dists[name] != nil
}

func mergemaps(ms ...map[string]int) map[string]int {
	u := make(map[string]int)
	for _, m := range ms {
		for k, v := range m {
			u[k] += v
		}
	}
	return u
}
