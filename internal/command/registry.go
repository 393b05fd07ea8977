package command

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/mapper"
	"github.com/mapward/mapward/internal/pathfind"
)

// Context carries the per-session collaborators a handler acts on.
type Context struct {
	// Session is the synchronization context of the issuing connection.
	Session *mapper.Session
	// Runner is the session's plan stepper.
	Runner *pathfind.Runner
	// Store is the shared map graph store.
	Store *atlas.Store
	// MapFile is the snapshot path written by savemap.
	MapFile string
	// MaxResults caps search output rows.
	MaxResults int
	// Reply emits one synthesized response line to the client.
	Reply func(line string)
	// Logger is the session-scoped logger.
	Logger *zap.Logger
}

// Replyf emits a formatted synthesized response line.
func (c *Context) Replyf(format string, args ...any) {
	c.Reply(fmt.Sprintf(format, args...))
}

// Command defines one mapper verb.
type Command struct {
	// Name is the canonical verb.
	Name string
	// Aliases are alternate verbs.
	Aliases []string
	// Usage is the one-line argument synopsis shown by help.
	Usage string
	// Help is the one-line description shown by help.
	Help string
	// Run executes the verb.
	Run func(ctx *Context, req ParseResult)
}

// Registry maps verbs and aliases to commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
		aliases:  make(map[string]string),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		r.commands[cmd.Name] = cmd
		for _, alias := range cmd.Aliases {
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, cmd.Name)
			}
			r.aliases[alias] = cmd.Name
		}
	}

	return r, nil
}

// DefaultRegistry creates a Registry with all built-in mapper commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Resolve looks up a command by verb or alias.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(verb string) (*Command, bool) {
	if cmd, ok := r.commands[verb]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[verb]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// Dispatch parses a command line and executes its verb.
//
// Postcondition: Returns true if the verb was recognized and ran; false
// means the line is not a mapper command and should be relayed instead.
func (r *Registry) Dispatch(ctx *Context, line string) bool {
	req := Parse(line)
	if req.Verb == "" {
		return false
	}
	cmd, ok := r.Resolve(req.Verb)
	if !ok {
		return false
	}
	cmd.Run(ctx, req)
	return true
}

// Help renders the sorted verb summary.
func (r *Registry) Help() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		cmd := r.commands[name]
		usage := cmd.Name
		if cmd.Usage != "" {
			usage += " " + cmd.Usage
		}
		lines = append(lines, fmt.Sprintf("%-32s %s", usage, cmd.Help))
	}
	return lines
}
