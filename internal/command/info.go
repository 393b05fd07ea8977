package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/mapper"
)

func infoCommands() []Command {
	return []Command{
		{
			Name:  "rinfo",
			Usage: "[vnum|label]",
			Help:  "show everything known about a room",
			Run:   runRinfo,
		},
		{
			Name: "position",
			Help: "show the current synchronization state",
			Run: func(ctx *Context, _ ParseResult) {
				ctx.Replyf("Position: %s.", ctx.Session.Position())
			},
		},
		{
			Name:  "fname",
			Usage: "<pattern>",
			Help:  "find rooms by name, nearest first",
			Run:   searchHandler(atlas.FieldName),
		},
		{
			Name:  "fdesc",
			Usage: "<pattern>",
			Help:  "find rooms by description, nearest first",
			Run:   searchHandler(atlas.FieldDesc),
		},
		{
			Name:  "fnote",
			Usage: "<pattern>",
			Help:  "find rooms by note, nearest first",
			Run:   searchHandler(atlas.FieldNote),
		},
		{
			Name:  "fdoor",
			Usage: "<pattern>",
			Help:  "find rooms by door name, nearest first",
			Run:   searchHandler(atlas.FieldDoor),
		},
	}
}

func runRinfo(ctx *Context, req ParseResult) {
	arg := ""
	if len(req.Args) > 0 {
		arg = req.Args[0]
	}
	v, err := resolveRoomArg(ctx, arg)
	if err != nil {
		ctx.Replyf("Error: %v", err)
		return
	}
	room, ok := ctx.Store.Room(v)
	if !ok {
		ctx.Replyf("Error: %v", atlas.ErrRoomNotFound)
		return
	}

	ctx.Replyf("vnum: %d", room.Vnum)
	ctx.Replyf("name: %s", room.Name)
	for _, line := range strings.Split(room.Desc, "\n") {
		ctx.Replyf("desc: %s", line)
	}
	if room.DynamicDesc != "" {
		ctx.Replyf("dynamic: %s", strings.ReplaceAll(room.DynamicDesc, "\n", " "))
	}
	if room.Note != "" {
		ctx.Replyf("note: %s", room.Note)
	}
	ctx.Replyf("terrain: %s", room.Terrain)
	if room.Coords != nil {
		ctx.Replyf("coords: %d, %d, %d", room.Coords.X, room.Coords.Y, room.Coords.Z)
	} else {
		ctx.Reply("coords: undefined")
	}
	ctx.Replyf("align: %s, light: %s, portable: %s, ridable: %s, avoid: %s",
		room.Align, room.Light, room.Portable, room.Ridable, yesNo(room.Avoid))
	if flags := sortedFlags(room.MobFlags); len(flags) > 0 {
		ctx.Replyf("mob flags: %s", strings.Join(flags, ", "))
	}
	if flags := sortedFlags(room.LoadFlags); len(flags) > 0 {
		ctx.Replyf("load flags: %s", strings.Join(flags, ", "))
	}
	if labels := ctx.Store.LabelsFor(v); len(labels) > 0 {
		ctx.Replyf("labels: %s", strings.Join(labels, ", "))
	}
	for _, dir := range atlas.Directions {
		exit, ok := room.ExitTo(dir)
		if !ok {
			continue
		}
		ctx.Replyf("exit %s: %s", dir, describeExit(exit))
	}
}

func describeExit(exit *atlas.Exit) string {
	var sb strings.Builder
	if exit.Target == atlas.Undefined {
		sb.WriteString("undefined")
	} else {
		fmt.Fprintf(&sb, "vnum %d", exit.Target)
	}
	var flags []string
	for f, on := range exit.Flags {
		if on && f != atlas.ExitNormal {
			flags = append(flags, string(f))
		}
	}
	sort.Strings(flags)
	if len(flags) > 0 {
		fmt.Fprintf(&sb, " [%s]", strings.Join(flags, ", "))
	}
	if exit.Door {
		name := exit.DoorName
		if name == "" {
			name = "door"
		}
		fmt.Fprintf(&sb, " (%s", name)
		if dflags := doorFlagNames(exit); len(dflags) > 0 {
			fmt.Fprintf(&sb, ": %s", strings.Join(dflags, ", "))
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func doorFlagNames(exit *atlas.Exit) []string {
	var names []string
	for f, on := range exit.DoorFlags {
		if on {
			names = append(names, string(f))
		}
	}
	sort.Strings(names)
	return names
}

func sortedFlags(set map[string]bool) []string {
	var names []string
	for f, on := range set {
		if on {
			names = append(names, f)
		}
	}
	sort.Strings(names)
	return names
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func searchHandler(field atlas.SearchField) func(*Context, ParseResult) {
	return func(ctx *Context, req ParseResult) {
		if req.RawArgs == "" {
			ctx.Reply("Error: pattern required.")
			return
		}
		ref := atlas.Undefined
		if pos := ctx.Session.Position(); pos.State == mapper.Synced {
			ref = pos.Room
		}
		results, err := ctx.Store.Search(field, req.RawArgs, ref, ctx.MaxResults)
		if err != nil {
			ctx.Replyf("Error: %v", err)
			return
		}
		if len(results) == 0 {
			ctx.Reply("Nothing found.")
			return
		}
		for _, hit := range results {
			if hit.Distance >= 1<<30 || ref == atlas.Undefined {
				ctx.Replyf("%d: %s", hit.Vnum, hit.Name)
			} else {
				ctx.Replyf("%d: %s (distance %d)", hit.Vnum, hit.Name, hit.Distance)
			}
		}
	}
}
