package command

import "strings"

// Arguments is the parsed argument list of one invocation. It is populated
// by the instruction parser and must not be modified by commands.
type Arguments struct {
	// Flags holds the valueless named arguments that were supplied, keyed
	// by the name as written, without dashes.
	Flags map[string]bool
	// Options holds the named arguments that were supplied with a value.
	Options map[string]string
	// Positional holds the bare words in order.
	Positional []string
	// Raw is the unparsed remainder of the message after the prefix and
	// command name.
	Raw string
}

// Named returns the names of every flag and option that was supplied, in no
// particular order.
func (a *Arguments) Named() []string {
	names := make([]string, 0, len(a.Flags)+len(a.Options))
	for k := range a.Flags {
		names = append(names, k)
	}
	for k := range a.Options {
		names = append(names, k)
	}
	return names
}

// Has reports whether the named flag or option was supplied.
func (a *Arguments) Has(name string) bool {
	if a.Flags[name] {
		return true
	}
	_, ok := a.Options[name]
	return ok
}

// Option returns the value of the named option and whether it was supplied.
func (a *Arguments) Option(name string) (string, bool) {
	v, ok := a.Options[name]
	return v, ok
}

// Input returns the positional input joined back into a single string.
func (a *Arguments) Input() string {
	return strings.Join(a.Positional, " ")
}

// WantsHelp reports whether the invocation asks for the command's help text
// instead of its body, either with a help flag or with "help" as the first
// positional word.
func (a *Arguments) WantsHelp() bool {
	if a.Flags["help"] || a.Flags["h"] {
		return true
	}
	return len(a.Positional) > 0 && strings.EqualFold(a.Positional[0], "help")
}
