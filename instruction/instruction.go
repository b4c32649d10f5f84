// Package instruction turns raw message text into command invocations.
package instruction

import (
	"strings"

	"github.com/aigachu/lavenza/client"
	"github.com/aigachu/lavenza/command"
)

// Instruction is the parsed representation of one recognized invocation. It
// is immutable after creation and never persisted.
type Instruction struct {
	// Command is the matched catalogue entry.
	Command *command.Descriptor
	// Args is the parsed argument list following the command name.
	Args *command.Arguments
}

// Parse interprets message text against a catalogue. It returns nil when the
// text is not an invocation: no prefix, a bare prefix, an unrecognized
// command name, or a command not allowed on the given client type. Malformed
// user input is never an error; there is simply no instruction in it.
//
// The prefix may be glued to the command name ("!ping hello") or stand alone
// as its own word ("! ping hello"); both parse identically.
func Parse(cat *command.Catalogue, prefix string, t client.Type, text string) *Instruction {
	fields := strings.Fields(text)
	if len(fields) == 0 || prefix == "" {
		return nil
	}
	var name string
	var rest []string
	switch first := fields[0]; {
	case first == prefix:
		if len(fields) < 2 {
			return nil
		}
		name, rest = fields[1], fields[2:]
	case strings.HasPrefix(first, prefix):
		name, rest = first[len(prefix):], fields[1:]
	default:
		return nil
	}
	d, ok := cat.Lookup(name)
	if !ok || !d.Allowed(t) {
		return nil
	}
	args := parseArguments(rest)
	args.Raw = strings.Join(rest, " ")
	return &Instruction{Command: d, Args: args}
}

// parseArguments splits tokens into flags, options, and positional words.
// A dashed token followed by a non-dashed token is an option taking that
// token as its value; a dashed token followed by another dashed token, or by
// nothing, is a flag. "--name=value" binds explicitly, grouped short flags
// ("-ab") split per letter, and a bare "--" ends named parsing.
func parseArguments(tokens []string) *command.Arguments {
	args := &command.Arguments{
		Flags:   make(map[string]bool),
		Options: make(map[string]string),
	}
	named := true
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case !named || !strings.HasPrefix(tok, "-") || tok == "-":
			args.Positional = append(args.Positional, tok)
		case tok == "--":
			named = false
		case strings.HasPrefix(tok, "--"):
			name := tok[2:]
			if k := strings.IndexByte(name, '='); k >= 0 {
				args.Options[name[:k]] = name[k+1:]
				continue
			}
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
				args.Options[name] = tokens[i+1]
				i++
				continue
			}
			args.Flags[name] = true
		default:
			name := tok[1:]
			if len(name) > 1 {
				for _, r := range name {
					args.Flags[string(r)] = true
				}
				continue
			}
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
				args.Options[name] = tokens[i+1]
				i++
				continue
			}
			args.Flags[name] = true
		}
	}
	return args
}
