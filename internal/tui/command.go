package tui

import (
	"fmt"
	"slices"
	"strings"
)

// Command is a parsed prompt line. Name is canonical once resolved.
type Command struct {
	Name string
	Args string
}

type commandDef struct {
	name    string
	aliases []string
	usage   string // argument placeholder; empty when the command takes none
}

var commands = []commandDef{
	{name: "search", aliases: []string{"s"}, usage: "<query>"},
	{name: "local", aliases: []string{"l"}, usage: "<query>"},
	{name: "chat", aliases: []string{"c"}, usage: "<name>"},
	{name: "open", aliases: []string{"o"}, usage: "<userId>"},
	{name: "refresh", aliases: []string{"r"}},
	{name: "dismiss"},
	{name: "logout"},
	{name: "help", aliases: []string{"h"}},
	{name: "quit", aliases: []string{"q"}},
}

// ParseCommand splits a prompt line (without the leading ':') into a
// lowercased name and its arguments.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Resolve maps an alias to its command and checks the argument count.
func (c Command) Resolve() (Command, error) {
	for _, def := range commands {
		if c.Name != def.name && !slices.Contains(def.aliases, c.Name) {
			continue
		}
		c.Name = def.name
		switch {
		case def.usage != "" && c.Args == "":
			return c, fmt.Errorf("usage: :%s %s", def.name, def.usage)
		case def.usage == "" && c.Args != "":
			return c, fmt.Errorf(":%s takes no arguments", def.name)
		}
		return c, nil
	}
	return c, fmt.Errorf("unknown command %q", c.Name)
}

// commandNames lists canonical names for completion.
func commandNames() []string {
	names := make([]string, len(commands))
	for i, def := range commands {
		names[i] = def.name
	}
	return names
}
