package command

import (
	"sort"
	"strconv"

	"github.com/mapward/mapward/internal/atlas"
)

func editCommands() []Command {
	return []Command{
		{
			Name:  "rlabel",
			Usage: "add <name> [vnum] | delete <name> | info",
			Help:  "manage label bindings",
			Run:   runLabel,
		},
		{
			Name:  "rdelete",
			Usage: "[vnum] [cascade]",
			Help:  "delete a room; cascade removes its labels too",
			Run:   runDelete,
		},
		{
			Name:  "rlink",
			Usage: "add|remove <dir> <vnum|label> [oneway]",
			Help:  "link or unlink the current room",
			Run:   runLink,
		},
		{
			Name:  "rnote",
			Usage: "[text]",
			Help:  "set or clear the current room's note",
			Run:   fieldHandler(func(r *atlas.Room, raw string) { r.Note = raw }),
		},
		{
			Name:  "rname",
			Usage: "<text>",
			Help:  "set the current room's name",
			Run:   fieldHandler(func(r *atlas.Room, raw string) { r.Name = raw }),
		},
		{
			Name:  "rterrain",
			Usage: "<class>",
			Help:  "set the current room's terrain class",
			Run:   runTerrain,
		},
		{
			Name:  "ralign",
			Usage: "good|neutral|evil|undefined",
			Help:  "set the current room's alignment",
			Run: enumHandler(func(r *atlas.Room, val string) bool {
				switch atlas.Alignment(val) {
				case atlas.AlignUndefined, atlas.AlignGood, atlas.AlignNeutral, atlas.AlignEvil:
					r.Align = atlas.Alignment(val)
					return true
				}
				return false
			}),
		},
		{
			Name:  "rlight",
			Usage: "lit|dark|undefined",
			Help:  "set the current room's light level",
			Run: enumHandler(func(r *atlas.Room, val string) bool {
				switch atlas.Light(val) {
				case atlas.LightUndefined, atlas.LightLit, atlas.LightDark:
					r.Light = atlas.Light(val)
					return true
				}
				return false
			}),
		},
		{
			Name:  "rportable",
			Usage: "portable|notportable|undefined",
			Help:  "set the current room's portability",
			Run: enumHandler(func(r *atlas.Room, val string) bool {
				switch atlas.Portability(val) {
				case atlas.PortUndefined, atlas.Portable, atlas.NotPortable:
					r.Portable = atlas.Portability(val)
					return true
				}
				return false
			}),
		},
		{
			Name:  "rridable",
			Usage: "ridable|notridable|undefined",
			Help:  "set the current room's ridability",
			Run: enumHandler(func(r *atlas.Room, val string) bool {
				switch atlas.Ridability(val) {
				case atlas.RideUndefined, atlas.Ridable, atlas.NotRidable:
					r.Ridable = atlas.Ridability(val)
					return true
				}
				return false
			}),
		},
		{
			Name: "ravoid",
			Help: "toggle the current room's avoid flag",
			Run: func(ctx *Context, _ ParseResult) {
				v, err := resolveRoomArg(ctx, "")
				if err != nil {
					ctx.Replyf("Error: %v", err)
					return
				}
				var on bool
				err = ctx.Store.Update(v, func(r *atlas.Room) {
					r.Avoid = !r.Avoid
					on = r.Avoid
				})
				if err != nil {
					ctx.Replyf("Error: %v", err)
					return
				}
				ctx.Replyf("avoid %s for vnum %d.", map[bool]string{true: "set", false: "cleared"}[on], v)
			},
		},
		{
			Name:  "rmobflags",
			Usage: "<flag>",
			Help:  "toggle a mob category flag on the current room",
			Run:   setFlagHandler(func(r *atlas.Room) map[string]bool { return r.MobFlags }),
		},
		{
			Name:  "rloadflags",
			Usage: "<flag>",
			Help:  "toggle an item load flag on the current room",
			Run:   setFlagHandler(func(r *atlas.Room) map[string]bool { return r.LoadFlags }),
		},
		{
			Name:  "rx",
			Usage: "<n>",
			Help:  "set the current room's x coordinate",
			Run:   coordHandler(func(c *atlas.Coords, n int) { c.X = n }),
		},
		{
			Name:  "ry",
			Usage: "<n>",
			Help:  "set the current room's y coordinate",
			Run:   coordHandler(func(c *atlas.Coords, n int) { c.Y = n }),
		},
		{
			Name:  "rz",
			Usage: "<n>",
			Help:  "set the current room's z coordinate",
			Run:   coordHandler(func(c *atlas.Coords, n int) { c.Z = n }),
		},
		{
			Name:  "exitflags",
			Usage: "<flag> <dir>",
			Help:  "toggle a traversal flag on an exit of the current room",
			Run:   runExitFlags,
		},
		{
			Name:  "doorflags",
			Usage: "<flag> <dir>",
			Help:  "toggle a door flag on an exit of the current room",
			Run:   runDoorFlags,
		},
		{
			Name:  "secret",
			Usage: "add <name> <dir> | remove <dir>",
			Help:  "record or remove a secret door",
			Run:   runSecret,
		},
	}
}

func runLabel(ctx *Context, req ParseResult) {
	if len(req.Args) == 0 {
		ctx.Reply("Usage: rlabel add <name> [vnum] | delete <name> | info")
		return
	}
	switch req.Args[0] {
	case "add":
		if len(req.Args) < 2 {
			ctx.Reply("Error: label name required.")
			return
		}
		arg := ""
		if len(req.Args) > 2 {
			arg = req.Args[2]
		}
		v, err := resolveRoomArg(ctx, arg)
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		if err := ctx.Store.AddLabel(req.Args[1], v); err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Label %q -> vnum %d.", req.Args[1], v)
	case "delete", "del":
		if len(req.Args) < 2 {
			ctx.Reply("Error: label name required.")
			return
		}
		if err := ctx.Store.RemoveLabel(req.Args[1]); err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Label %q removed.", req.Args[1])
	case "info":
		labels := ctx.Store.Labels()
		if len(labels) == 0 {
			ctx.Reply("No labels defined.")
			return
		}
		names := make([]string, 0, len(labels))
		for name := range labels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ctx.Replyf("%s -> vnum %d", name, labels[name])
		}
	default:
		ctx.Reply("Usage: rlabel add <name> [vnum] | delete <name> | info")
	}
}

func runDelete(ctx *Context, req ParseResult) {
	arg := ""
	cascade := false
	for _, a := range req.Args {
		if a == "cascade" {
			cascade = true
		} else {
			arg = a
		}
	}
	v, err := resolveRoomArg(ctx, arg)
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	if err := ctx.Store.DeleteRoom(v, cascade); err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("Room %d deleted.", v)
}

func runLink(ctx *Context, req ParseResult) {
	if len(req.Args) < 2 {
		ctx.Reply("Usage: rlink add|remove <dir> <vnum|label> [oneway]")
		return
	}
	dir, ok := atlas.ParseDirection(req.Args[1])
	if !ok {
		ctx.Replyf("Error: %q is not a direction.", req.Args[1])
		return
	}
	from, err := resolveRoomArg(ctx, "")
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}

	switch req.Args[0] {
	case "add":
		if len(req.Args) < 3 {
			ctx.Reply("Error: target room required.")
			return
		}
		to, err := resolveRoomArg(ctx, req.Args[2])
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		oneWay := len(req.Args) > 3 && req.Args[3] == "oneway"
		if err := ctx.Store.AddLink(from, to, dir, oneWay); err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Linked %d %s -> %d.", from, dir, to)
	case "remove":
		oneWay := len(req.Args) > 2 && req.Args[2] == "oneway"
		if err := ctx.Store.RemoveLink(from, dir, !oneWay); err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Unlinked %d %s.", from, dir)
	default:
		ctx.Reply("Usage: rlink add|remove <dir> <vnum|label> [oneway]")
	}
}

func runTerrain(ctx *Context, req ParseResult) {
	if len(req.Args) == 0 {
		ctx.Reply("Error: terrain class required.")
		return
	}
	terrain, ok := atlas.ParseTerrain(req.Args[0])
	if !ok {
		ctx.Replyf("Error: unknown terrain %q.", req.Args[0])
		return
	}
	v, err := resolveRoomArg(ctx, "")
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	if err := ctx.Store.Update(v, func(r *atlas.Room) { r.Terrain = terrain }); err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("terrain %s for vnum %d.", terrain, v)
}

func runExitFlags(ctx *Context, req ParseResult) {
	if len(req.Args) < 2 {
		ctx.Reply("Usage: exitflags <flag> <dir>")
		return
	}
	flag, ok := atlas.ParseExitFlag(req.Args[0])
	if !ok {
		ctx.Replyf("Error: unknown exit flag %q.", req.Args[0])
		return
	}
	dir, ok := atlas.ParseDirection(req.Args[1])
	if !ok {
		ctx.Replyf("Error: %q is not a direction.", req.Args[1])
		return
	}
	v, err := resolveRoomArg(ctx, "")
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	var on bool
	err = ctx.Store.UpdateExit(v, dir, func(e *atlas.Exit) {
		e.Flags[flag] = !e.Flags[flag]
		on = e.Flags[flag]
	})
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("%s %s on exit %s of vnum %d.", flag, onOff(on), dir, v)
}

func runDoorFlags(ctx *Context, req ParseResult) {
	if len(req.Args) < 2 {
		ctx.Reply("Usage: doorflags <flag> <dir>")
		return
	}
	flag, ok := atlas.ParseDoorFlag(req.Args[0])
	if !ok {
		ctx.Replyf("Error: unknown door flag %q.", req.Args[0])
		return
	}
	dir, ok := atlas.ParseDirection(req.Args[1])
	if !ok {
		ctx.Replyf("Error: %q is not a direction.", req.Args[1])
		return
	}
	v, err := resolveRoomArg(ctx, "")
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	var on bool
	err = ctx.Store.UpdateExit(v, dir, func(e *atlas.Exit) {
		e.Door = true
		e.Flags[atlas.ExitDoor] = true
		e.DoorFlags[flag] = !e.DoorFlags[flag]
		on = e.DoorFlags[flag]
	})
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	ctx.Replyf("%s %s on door %s of vnum %d.", flag, onOff(on), dir, v)
}

func runSecret(ctx *Context, req ParseResult) {
	if len(req.Args) < 2 {
		ctx.Reply("Usage: secret add <name> <dir> | remove <dir>")
		return
	}
	v, err := resolveRoomArg(ctx, "")
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}

	switch req.Args[0] {
	case "add":
		if len(req.Args) < 3 {
			ctx.Reply("Error: direction required.")
			return
		}
		dir, ok := atlas.ParseDirection(req.Args[2])
		if !ok {
			ctx.Replyf("Error: %q is not a direction.", req.Args[2])
			return
		}
		name := req.Args[1]
		err = ctx.Store.UpdateExit(v, dir, func(e *atlas.Exit) {
			e.Door = true
			e.DoorName = name
			e.Flags[atlas.ExitDoor] = true
			e.DoorFlags[atlas.DoorHidden] = true
		})
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Secret door %q added %s of vnum %d.", name, dir, v)
	case "remove", "del":
		dir, ok := atlas.ParseDirection(req.Args[1])
		if !ok {
			ctx.Replyf("Error: %q is not a direction.", req.Args[1])
			return
		}
		err = ctx.Store.UpdateExit(v, dir, func(e *atlas.Exit) {
			e.Door = false
			e.DoorName = ""
			e.DoorFlags = map[atlas.DoorFlag]bool{}
		})
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Secret door removed %s of vnum %d.", dir, v)
	default:
		ctx.Reply("Usage: secret add <name> <dir> | remove <dir>")
	}
}

// fieldHandler edits a free-text field of the current room with RawArgs.
func fieldHandler(set func(r *atlas.Room, raw string)) func(*Context, ParseResult) {
	return func(ctx *Context, req ParseResult) {
		v, err := resolveRoomArg(ctx, "")
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		if err := ctx.Store.Update(v, func(r *atlas.Room) { set(r, req.RawArgs) }); err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Updated vnum %d.", v)
	}
}

// enumHandler edits an enumerated field of the current room, rejecting
// values outside the enumeration.
func enumHandler(set func(r *atlas.Room, val string) bool) func(*Context, ParseResult) {
	return func(ctx *Context, req ParseResult) {
		if len(req.Args) == 0 {
			ctx.Reply("Error: value required.")
			return
		}
		v, err := resolveRoomArg(ctx, "")
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ok := false
		err = ctx.Store.Update(v, func(r *atlas.Room) { ok = set(r, req.Args[0]) })
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		if !ok {
			ctx.Replyf("Error: invalid value %q.", req.Args[0])
			return
		}
		ctx.Replyf("Updated vnum %d.", v)
	}
}

func setFlagHandler(pick func(r *atlas.Room) map[string]bool) func(*Context, ParseResult) {
	return func(ctx *Context, req ParseResult) {
		if len(req.Args) == 0 {
			ctx.Reply("Error: flag name required.")
			return
		}
		v, err := resolveRoomArg(ctx, "")
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		flag := req.Args[0]
		var on bool
		err = ctx.Store.Update(v, func(r *atlas.Room) {
			set := pick(r)
			if set[flag] {
				delete(set, flag)
			} else {
				set[flag] = true
				on = true
			}
		})
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("%s %s for vnum %d.", flag, onOff(on), v)
	}
}

func coordHandler(set func(c *atlas.Coords, n int)) func(*Context, ParseResult) {
	return func(ctx *Context, req ParseResult) {
		if len(req.Args) == 0 {
			ctx.Reply("Error: coordinate value required.")
			return
		}
		n, err := strconv.Atoi(req.Args[0])
		if err != nil {
			ctx.Replyf("Error: %q is not a number.", req.Args[0])
			return
		}
		v, err := resolveRoomArg(ctx, "")
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		err = ctx.Store.Update(v, func(r *atlas.Room) {
			if r.Coords == nil {
				r.Coords = &atlas.Coords{}
			}
			set(r.Coords, n)
		})
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		ctx.Replyf("Updated vnum %d.", v)
	}
}

func onOff(on bool) string {
	if on {
		return "set"
	}
	return "cleared"
}
