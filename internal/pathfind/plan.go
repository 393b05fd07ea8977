// Package pathfind computes constrained shortest speed-walk routes over the
// atlas and steps through them against live movement confirmations.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mapward/mapward/internal/atlas"
)

// Typed failures reported to the requesting command. None of them mutate
// any state.
var (
	// ErrUnknownDestination is returned when the destination resolves to no room.
	ErrUnknownDestination = errors.New("unknown destination")
	// ErrNoPathFound is returned when the constraints admit no route.
	ErrNoPathFound = errors.New("no path found")
	// ErrNotSynced is returned when pathfinding is requested while unsynced.
	ErrNotSynced = errors.New("position not synced")
	// ErrDeviated is reported by the runner when the actual position diverges
	// from the active plan.
	ErrDeviated = errors.New("deviated from plan")
	// ErrStepTimeout is reported when a movement confirmation never arrives.
	ErrStepTimeout = errors.New("timed out waiting for movement confirmation")
)

// baseMoveCost is the weight of a single step before terrain surcharge.
// Edge weights are therefore always strictly positive.
const baseMoveCost = 1.0

// AvoidSet is the avoidance constraint set of one pathfinding request.
type AvoidSet struct {
	// Terrains excludes edges whose target room has one of these terrains.
	Terrains map[atlas.Terrain]bool
	// ExitFlags excludes edges whose exit carries one of these flags.
	// Only avoid, no_match, and random are meaningful here.
	ExitFlags map[atlas.ExitFlag]bool
}

// NewAvoidSet returns an empty avoidance set.
func NewAvoidSet() AvoidSet {
	return AvoidSet{
		Terrains:  map[atlas.Terrain]bool{},
		ExitFlags: map[atlas.ExitFlag]bool{},
	}
}

// ParseAvoidFlags builds an avoidance set from `|`-separated flag words.
// Each word is a terrain class, an avoidable exit flag, or "noFOO" for the
// terrain FOO (the speedwalk convention, e.g. "noroad").
func ParseAvoidFlags(words []string) (AvoidSet, error) {
	avoid := NewAvoidSet()
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		// "random" names both a terrain class and an exit flag; such a word
		// avoids both.
		matched := false
		if t, ok := atlas.ParseTerrain(word); ok {
			avoid.Terrains[t] = true
			matched = true
		} else if t, ok := atlas.ParseTerrain(strings.TrimPrefix(word, "no")); ok && strings.HasPrefix(word, "no") {
			avoid.Terrains[t] = true
			matched = true
		}
		if f, ok := atlas.ParseExitFlag(word); ok && avoidableExitFlag(f) {
			avoid.ExitFlags[f] = true
			matched = true
		}
		if !matched {
			return AvoidSet{}, fmt.Errorf("unknown avoid flag %q", word)
		}
	}
	return avoid, nil
}

func avoidableExitFlag(f atlas.ExitFlag) bool {
	return f == atlas.ExitAvoid || f == atlas.ExitNoMatch || f == atlas.ExitRandom
}

// Plan is an ordered direction sequence toward a target, with a cursor and
// validity flag maintained by the runner.
type Plan struct {
	// Directions is the route, source exclusive, target inclusive.
	Directions []atlas.Direction
	// Rooms holds the expected room after each step; len(Rooms) == len(Directions).
	Rooms []atlas.Vnum
	// Source and Target are the route's endpoints.
	Source atlas.Vnum
	Target atlas.Vnum
	// Avoid is the constraint set the plan was computed under.
	Avoid AvoidSet

	cursor int
	stale  bool
}

// Remaining returns how many steps have not been confirmed yet.
func (p *Plan) Remaining() int { return len(p.Directions) - p.cursor }

// Valid reports whether the plan is still usable.
func (p *Plan) Valid() bool { return !p.stale }

// next returns the cursor's direction and expected room.
func (p *Plan) next() (atlas.Direction, atlas.Vnum, bool) {
	if p.stale || p.cursor >= len(p.Directions) {
		return "", atlas.Undefined, false
	}
	return p.Directions[p.cursor], p.Rooms[p.cursor], true
}

// Speedwalk renders the plan in the speed-walk mini-language, collapsing
// runs of a direction: "3n, e, 2u".
func (p *Plan) Speedwalk() string {
	if len(p.Directions) == 0 {
		return "here"
	}
	var parts []string
	i := 0
	for i < len(p.Directions) {
		j := i
		for j < len(p.Directions) && p.Directions[j] == p.Directions[i] {
			j++
		}
		count := j - i
		short := string(p.Directions[i][0])
		if p.Directions[i] == atlas.Down {
			short = "d"
		}
		if count > 1 {
			parts = append(parts, strconv.Itoa(count)+short)
		} else {
			parts = append(parts, short)
		}
		i = j
	}
	return strings.Join(parts, ", ")
}

// ResolveDestination resolves a destination given as a vnum or label.
func ResolveDestination(store *atlas.Store, dest string) (atlas.Vnum, error) {
	if n, err := strconv.Atoi(dest); err == nil {
		if _, ok := store.Room(atlas.Vnum(n)); ok {
			return atlas.Vnum(n), nil
		}
		return atlas.Undefined, fmt.Errorf("vnum %d: %w", n, ErrUnknownDestination)
	}
	if v, ok := store.ResolveLabel(dest); ok {
		return v, nil
	}
	return atlas.Undefined, fmt.Errorf("label %q: %w", dest, ErrUnknownDestination)
}

// frontierItem is one entry of the Dijkstra priority queue.
type frontierItem struct {
	vnum  atlas.Vnum
	cost  float64
	hops  int
	index int
}

type frontier []*frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	// Ties broken by fewest hops.
	return f[i].hops < f[j].hops
}
func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}
func (f *frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*f)
	*f = append(*f, item)
}
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}

// Compute runs a weighted shortest-path search from source to dest over a
// consistent snapshot of the store. Edge weight is the base move cost plus
// the target room's terrain surcharge. Excluded edges: targets whose terrain
// is avoided; targets with the avoid flag set (unless source or
// destination); exits carrying an avoided traversal flag; unmapped exits.
// Ties in total weight are broken by fewest hops.
//
// Postcondition: Returns a Plan whose Rooms end at dest, or ErrNoPathFound.
func Compute(store *atlas.Store, source, dest atlas.Vnum, avoid AvoidSet) (*Plan, error) {
	if source == dest {
		return &Plan{Source: source, Target: dest, Avoid: avoid}, nil
	}

	type cameFrom struct {
		prev atlas.Vnum
		dir  atlas.Direction
	}

	var found bool
	parents := make(map[atlas.Vnum]cameFrom)

	store.View(func(rooms map[atlas.Vnum]*atlas.Room, _ map[string]atlas.Vnum) {
		if _, ok := rooms[source]; !ok {
			return
		}
		if _, ok := rooms[dest]; !ok {
			return
		}

		dist := map[atlas.Vnum]float64{source: 0}
		hops := map[atlas.Vnum]int{source: 0}
		done := map[atlas.Vnum]bool{}

		pq := &frontier{}
		heap.Init(pq)
		heap.Push(pq, &frontierItem{vnum: source, cost: 0, hops: 0})

		for pq.Len() > 0 {
			item := heap.Pop(pq).(*frontierItem)
			if done[item.vnum] {
				continue
			}
			done[item.vnum] = true
			if item.vnum == dest {
				found = true
				return
			}

			room := rooms[item.vnum]
			for dir, exit := range room.Exits {
				if exit.Target == atlas.Undefined {
					continue
				}
				target, ok := rooms[exit.Target]
				if !ok || done[target.Vnum] {
					continue
				}
				if excluded(exit, target, avoid, source, dest) {
					continue
				}

				cost := item.cost + baseMoveCost + target.Terrain.Surcharge()
				nh := item.hops + 1
				old, seen := dist[target.Vnum]
				if seen && (old < cost || (old == cost && hops[target.Vnum] <= nh)) {
					continue
				}
				dist[target.Vnum] = cost
				hops[target.Vnum] = nh
				parents[target.Vnum] = cameFrom{prev: item.vnum, dir: dir}
				heap.Push(pq, &frontierItem{vnum: target.Vnum, cost: cost, hops: nh})
			}
		}
	})

	if !found {
		return nil, fmt.Errorf("from %d to %d: %w", source, dest, ErrNoPathFound)
	}

	var dirs []atlas.Direction
	var steps []atlas.Vnum
	for at := dest; at != source; {
		parent := parents[at]
		dirs = append(dirs, parent.dir)
		steps = append(steps, at)
		at = parent.prev
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
		steps[i], steps[j] = steps[j], steps[i]
	}

	return &Plan{
		Directions: dirs,
		Rooms:      steps,
		Source:     source,
		Target:     dest,
		Avoid:      avoid,
	}, nil
}

// excluded reports whether an edge is ruled out by the avoidance policy.
func excluded(exit *atlas.Exit, target *atlas.Room, avoid AvoidSet, source, dest atlas.Vnum) bool {
	if avoid.Terrains[target.Terrain] {
		return true
	}
	// Avoiding road terrain also rules out road-flagged exits (trails).
	if avoid.Terrains[atlas.TerrainRoad] && exit.Flags[atlas.ExitRoad] {
		return true
	}
	if target.Avoid && target.Vnum != source && target.Vnum != dest {
		return true
	}
	for flag := range avoid.ExitFlags {
		if exit.Flags[flag] {
			return true
		}
	}
	return false
}
