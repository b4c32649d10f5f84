// Package eminence defines the ranked permission tiers used for command access.
package eminence

import (
	"fmt"
	"strings"
)

// Tier is a user's standing with a bot in a given context.
// Tiers are ordered; a user at a given tier holds every lower tier as well.
type Tier int

const (
	// None is the default tier for users with no configured standing.
	None Tier = iota
	// Member is the tier for recognized community members.
	Member
	// Moderator is the tier for users trusted to moderate a channel.
	Moderator
	// Admin is the tier for users trusted to administer a bot.
	Admin
	// Owner is the tier of the bot operator.
	Owner
)

var names = [...]string{"None", "Member", "Moderator", "Admin", "Owner"}

func (t Tier) String() string {
	if t < None || int(t) >= len(names) {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return names[t]
}

// Meets reports whether t grants access requiring tier req.
func (t Tier) Meets(req Tier) bool {
	return t >= req
}

// Parse converts a tier name to its Tier. Names are case-insensitive, and
// the empty string parses as None.
func Parse(name string) (Tier, error) {
	if name == "" {
		return None, nil
	}
	for i, s := range names {
		if strings.EqualFold(s, name) {
			return Tier(i), nil
		}
	}
	return None, fmt.Errorf("unknown eminence %q", name)
}

// MarshalText implements [encoding.TextMarshaler].
func (t Tier) MarshalText() ([]byte, error) {
	if t < None || int(t) >= len(names) {
		return nil, fmt.Errorf("cannot marshal invalid eminence %d", int(t))
	}
	return []byte(names[t]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
