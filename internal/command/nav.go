package command

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/mapper"
	"github.com/mapward/mapward/internal/pathfind"
)

// BuiltinCommands returns every mapper verb.
func BuiltinCommands() []Command {
	var cmds []Command
	cmds = append(cmds, navCommands()...)
	cmds = append(cmds, infoCommands()...)
	cmds = append(cmds, editCommands()...)
	return cmds
}

func navCommands() []Command {
	return []Command{
		{
			Name:  "sync",
			Usage: "[vnum|label]",
			Help:  "force position to a room, or resync from the last presentation",
			Run:   runSync,
		},
		{
			Name:  "path",
			Usage: "<vnum|label> [flag|flag...]",
			Help:  "print the speedwalk to a destination",
			Run:   runPath,
		},
		{
			Name:  "run",
			Usage: "<vnum|label> [flag|flag...] | c",
			Help:  "walk to a destination step by step; `run c` continues after a deviation",
			Run:   runRun,
		},
		{
			Name: "stop",
			Help: "cancel the active run",
			Run:  runStop,
		},
		{
			Name: "automap",
			Help: "toggle creating rooms from unmatched presentations",
			Run:  toggleHandler("automap"),
		},
		{
			Name: "autolink",
			Help: "toggle linking exits from observed movement",
			Run:  toggleHandler("autolink"),
		},
		{
			Name: "automerge",
			Help: "toggle merging duplicate rooms on exact match",
			Run:  toggleHandler("automerge"),
		},
		{
			Name: "autoupdate",
			Help: "toggle refreshing stored room text from presentations",
			Run:  toggleHandler("autoupdate"),
		},
		{
			Name: "vnum",
			Help: "toggle announcing the room vnum after each sync",
			Run:  toggleHandler("vnum"),
		},
		{
			Name:    "savemap",
			Aliases: []string{"save"},
			Help:    "write the map snapshot to disk",
			Run:     runSave,
		},
		{
			Name: "help",
			Help: "list mapper commands",
			Run: func(ctx *Context, _ ParseResult) {
				// The registry is rebuilt here only to render help; verbs
				// are static.
				for _, line := range DefaultRegistry().Help() {
					ctx.Reply(line)
				}
			},
		},
	}
}

func runSync(ctx *Context, req ParseResult) {
	if len(req.Args) == 0 {
		pos := ctx.Session.Desync()
		ctx.Replyf("Position reset: now %s.", pos)
		return
	}

	v, err := resolveRoomArg(ctx, req.Args[0])
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	if err := ctx.Session.SyncTo(v); err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("Synced at vnum %d.", v)
}

func runPath(ctx *Context, req ParseResult) {
	plan, err := buildPlan(ctx, req.Args)
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("Path to vnum %d (%d steps): %s", plan.Target, len(plan.Directions), plan.Speedwalk())
}

func runRun(ctx *Context, req ParseResult) {
	if len(req.Args) == 1 && req.Args[0] == "c" {
		if err := ctx.Runner.Continue(); err != nil {
			ctx.Replyf("Error: %v", err)
		}
		return
	}

	plan, err := buildPlan(ctx, req.Args)
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	if len(plan.Directions) == 0 {
		ctx.Reply("Already there.")
		return
	}
	if err := ctx.Runner.Start(plan); err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("Running to vnum %d (%d steps): %s", plan.Target, len(plan.Directions), plan.Speedwalk())
}

func runStop(ctx *Context, _ ParseResult) {
	if ctx.Runner.Stop() {
		ctx.Reply("Run cancelled.")
	} else {
		ctx.Reply("No run is active.")
	}
}

func runSave(ctx *Context, _ ParseResult) {
	if err := ctx.Store.Save(ctx.MapFile); err != nil {
		ctx.Replyf("Error saving map: %v", err)
		return
	}
	ctx.Replyf("Saved %d rooms to %s.", ctx.Store.RoomCount(), ctx.MapFile)
}

func toggleHandler(name string) func(*Context, ParseResult) {
	return func(ctx *Context, _ ParseResult) {
		on, err := ctx.Session.Toggle(name)
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		state := "disabled"
		if on {
			state = "enabled"
		}
		ctx.Replyf("%s %s.", name, state)
	}
}

// buildPlan resolves the destination and avoidance flags and computes a
// plan from the current synced position.
func buildPlan(ctx *Context, args []string) (*pathfind.Plan, error) {
	if len(args) == 0 {
		return nil, errors.New("destination required")
	}
	pos := ctx.Session.Position()
	if pos.State != mapper.Synced {
		return nil, pathfind.ErrNotSynced
	}

	dest, err := pathfind.ResolveDestination(ctx.Store, args[0])
	if err != nil {
		return nil, err
	}

	var words []string
	for _, arg := range args[1:] {
		words = append(words, strings.Split(arg, "|")...)
	}
	avoid, err := pathfind.ParseAvoidFlags(words)
	if err != nil {
		return nil, err
	}

	return pathfind.Compute(ctx.Store, pos.Room, dest, avoid)
}

// resolveRoomArg resolves a room argument: empty means the current synced
// room, digits a vnum, anything else a label.
func resolveRoomArg(ctx *Context, arg string) (atlas.Vnum, error) {
	if arg == "" {
		pos := ctx.Session.Position()
		if pos.State != mapper.Synced {
			return atlas.Undefined, pathfind.ErrNotSynced
		}
		return pos.Room, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if _, ok := ctx.Store.Room(atlas.Vnum(n)); !ok {
			return atlas.Undefined, atlas.ErrRoomNotFound
		}
		return atlas.Vnum(n), nil
	}
	if v, ok := ctx.Store.ResolveLabel(arg); ok {
		return v, nil
	}
	return atlas.Undefined, atlas.ErrLabelNotFound
}
