package mapper

import (
	"sort"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/stream"
)

// MatchKind classifies a matcher decision.
type MatchKind int

// Matcher decisions.
const (
	// NoMatch means no room in the store presents this text.
	NoMatch MatchKind = iota
	// ExactMatch means exactly one room presents this text.
	ExactMatch
	// AmbiguousMatch means several rooms present this text.
	AmbiguousMatch
)

// Match is the matcher's decision for one presentation.
type Match struct {
	Kind MatchKind
	// Room is the matched vnum, meaningful only for ExactMatch.
	Room atlas.Vnum
	// Candidates is the ranked candidate list, meaningful only for
	// AmbiguousMatch: ascending Manhattan distance from the last known
	// coordinate, ties broken by ascending vnum.
	Candidates []atlas.Vnum
}

// MatchPresentation scores a presentation against the store.
//
// When the position is synced and the movement direction's exit has a defined
// target, that target's stored text is compared first; on equality it wins
// outright. Dynamic description is never a matching key. Otherwise the whole
// graph is consulted by exact (name, static description) equality; multiple
// hits are ranked by Manhattan distance from the last known coordinate.
// The scoring is pure: it never mutates the store.
func MatchPresentation(store *atlas.Store, pres stream.RoomPresentation, dir atlas.Direction, pos Position) Match {
	if pos.State == Synced && dir != "" {
		if current, ok := store.Room(pos.Room); ok {
			if exit, ok := current.ExitTo(dir); ok && exit.Target != atlas.Undefined {
				if expected, ok := store.Room(exit.Target); ok && textMatches(pres, expected) {
					return Match{Kind: ExactMatch, Room: expected.Vnum}
				}
				// Stored text diverged: edited game content or a forced
				// relocation. Fall through to the full-graph lookup.
			}
		}
	}

	var hits []atlas.Vnum
	if pres.StaticDesc != "" {
		hits = store.FindExact(pres.Name, pres.StaticDesc)
	} else {
		// Brief-mode presentation without a description: scan by name only.
		store.View(func(rooms map[atlas.Vnum]*atlas.Room, _ map[string]atlas.Vnum) {
			for v, r := range rooms {
				if r.Name == pres.Name {
					hits = append(hits, v)
				}
			}
		})
		sort.Slice(hits, func(i, j int) bool { return hits[i] < hits[j] })
	}

	switch len(hits) {
	case 0:
		return Match{Kind: NoMatch}
	case 1:
		return Match{Kind: ExactMatch, Room: hits[0]}
	}

	ranked := rankByDistance(store, hits, pos)
	return Match{Kind: AmbiguousMatch, Candidates: ranked}
}

// textMatches reports whether a presentation's matching keys equal a room's
// stored fields. A presentation without a static description (brief mode)
// matches on name alone.
func textMatches(pres stream.RoomPresentation, room *atlas.Room) bool {
	if pres.Name != room.Name {
		return false
	}
	if pres.StaticDesc == "" {
		return true
	}
	return pres.StaticDesc == room.Desc
}

// rankByDistance orders candidate vnums by ascending Manhattan distance from
// the position's last known coordinate, ties by ascending vnum. Candidates
// without coordinates rank last. Without a last known coordinate the order
// is by vnum alone.
func rankByDistance(store *atlas.Store, hits []atlas.Vnum, pos Position) []atlas.Vnum {
	var origin *atlas.Coords
	if pos.State == Synced {
		if r, ok := store.Room(pos.Room); ok {
			origin = r.Coords
		}
	}

	const unplaced = 1 << 30
	type rankedHit struct {
		vnum     atlas.Vnum
		distance int
	}
	ranked := make([]rankedHit, 0, len(hits))
	for _, v := range hits {
		distance := unplaced
		if origin != nil {
			if r, ok := store.Room(v); ok && r.Coords != nil {
				distance = origin.Manhattan(*r.Coords)
			}
		}
		ranked = append(ranked, rankedHit{vnum: v, distance: distance})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].vnum < ranked[j].vnum
	})

	out := make([]atlas.Vnum, len(ranked))
	for i, h := range ranked {
		out[i] = h.vnum
	}
	return out
}
