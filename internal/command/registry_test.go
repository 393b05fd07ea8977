package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRejectsDuplicateName(t *testing.T) {
	_, err := NewRegistry([]Command{
		{Name: "x", Run: func(*Context, ParseResult) {}},
		{Name: "x", Run: func(*Context, ParseResult) {}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate command name")
}

func TestNewRegistryRejectsAliasShadowingName(t *testing.T) {
	_, err := NewRegistry([]Command{
		{Name: "x", Run: func(*Context, ParseResult) {}},
		{Name: "y", Aliases: []string{"x"}, Run: func(*Context, ParseResult) {}},
	})
	assert.Error(t, err)
}

func TestNewRegistryRejectsDuplicateAlias(t *testing.T) {
	_, err := NewRegistry([]Command{
		{Name: "x", Aliases: []string{"z"}, Run: func(*Context, ParseResult) {}},
		{Name: "y", Aliases: []string{"z"}, Run: func(*Context, ParseResult) {}},
	})
	assert.Error(t, err)
}

func TestResolveByAlias(t *testing.T) {
	r, err := NewRegistry([]Command{
		{Name: "savemap", Aliases: []string{"save"}, Run: func(*Context, ParseResult) {}},
	})
	require.NoError(t, err)

	cmd, ok := r.Resolve("save")
	require.True(t, ok)
	assert.Equal(t, "savemap", cmd.Name)

	_, ok = r.Resolve("nosuch")
	assert.False(t, ok)
}

func TestDispatch(t *testing.T) {
	var gotArgs []string
	r, err := NewRegistry([]Command{
		{Name: "ping", Run: func(_ *Context, req ParseResult) { gotArgs = req.Args }},
	})
	require.NoError(t, err)

	assert.True(t, r.Dispatch(&Context{}, "ping one two"))
	assert.Equal(t, []string{"one", "two"}, gotArgs)

	assert.False(t, r.Dispatch(&Context{}, "unknown"))
	assert.False(t, r.Dispatch(&Context{}, ""))
}

func TestHelpSortedWithUsage(t *testing.T) {
	r, err := NewRegistry([]Command{
		{Name: "zeta", Help: "last", Run: func(*Context, ParseResult) {}},
		{Name: "alpha", Usage: "<arg>", Help: "first", Run: func(*Context, ParseResult) {}},
	})
	require.NoError(t, err)

	lines := r.Help()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "alpha <arg>"))
	assert.Contains(t, lines[0], "first")
	assert.True(t, strings.HasPrefix(lines[1], "zeta"))
}

func TestDefaultRegistryResolvesBuiltins(t *testing.T) {
	r := DefaultRegistry()
	for _, verb := range []string{"sync", "path", "run", "stop", "automap", "vnum", "rinfo", "fname", "fdoor", "rlabel", "rlink", "secret", "savemap", "save", "help"} {
		_, ok := r.Resolve(verb)
		assert.True(t, ok, "verb %q should resolve", verb)
	}
}
