package command

import (
	"strings"
)

// Help renders a command's usage text for chat: description, an example
// invocation with the given prefix, and the declared flags and options.
func Help(d *Descriptor, prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(d.Key)
	if d.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(d.Description)
	}
	if d.Usage != "" {
		sb.WriteString(" | usage: ")
		sb.WriteString(prefix)
		sb.WriteString(d.Usage)
	}
	if len(d.Aliases) > 0 {
		sb.WriteString(" | aliases: ")
		sb.WriteString(strings.Join(d.Aliases, ", "))
	}
	for _, p := range d.Schema.Flags {
		sb.WriteString(" | --")
		sb.WriteString(p.Key)
		if p.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(p.Description)
		}
	}
	for _, p := range d.Schema.Options {
		sb.WriteString(" | --")
		sb.WriteString(p.Key)
		sb.WriteString(" <value>")
		if p.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(p.Description)
		}
	}
	return sb.String()
}
