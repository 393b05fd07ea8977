// Package mapper owns the session's current-position belief: it scores room
// presentations against the atlas, drives the synchronization state machine,
// and commits graph mutations when auto-mapping.
package mapper

import (
	"fmt"
	"strings"

	"github.com/mapward/mapward/internal/atlas"
)

// State is the synchronization state of a session.
type State int

// Synchronization states.
const (
	// Unsynced means the session has no position belief.
	Unsynced State = iota
	// Synced means the session believes it is in exactly one room.
	Synced
	// Tentative means the belief is narrowed to a candidate set pending
	// disambiguation.
	Tentative
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case Synced:
		return "synced"
	case Tentative:
		return "tentative"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Position is the session's current-position belief.
type Position struct {
	// State is the synchronization state.
	State State
	// Room is the current room's vnum, meaningful only when State is Synced.
	Room atlas.Vnum
	// Candidates is the ranked candidate set, meaningful only when State is
	// Tentative.
	Candidates []atlas.Vnum
}

// SyncedAt returns a synced position at the given room.
func SyncedAt(v atlas.Vnum) Position {
	return Position{State: Synced, Room: v}
}

// String renders the position for synthesized output.
func (p Position) String() string {
	switch p.State {
	case Synced:
		return fmt.Sprintf("synced at vnum %d", p.Room)
	case Tentative:
		parts := make([]string, len(p.Candidates))
		for i, v := range p.Candidates {
			parts[i] = fmt.Sprintf("%d", v)
		}
		return fmt.Sprintf("tentative between vnums %s", strings.Join(parts, ", "))
	default:
		return "unsynced"
	}
}
