// Package stream segments the relayed server byte stream into discrete
// room-presentation and movement events. The segmenter is a tap: it reads a
// copy of the traffic the proxy relays and never consumes or blocks it.
package stream

import "github.com/mapward/mapward/internal/atlas"

// Event is one item of the segmented server output.
type Event interface {
	event()
}

// ExitInfo is one entry of a presentation's exits line, with the inline
// decorations the game wraps around the direction word.
type ExitInfo struct {
	// Dir is the direction of the exit.
	Dir atlas.Direction
	// Door reports an open door shown as (dir).
	Door bool
	// Hidden reports a closed or secret door shown as [dir].
	Hidden bool
	// Road reports a road in that direction, shown as =dir=.
	Road bool
	// Trail reports a trail in that direction, shown as -dir-.
	Trail bool
	// Climb reports a climbable exit shown as /dir\.
	Climb bool
}

// RoomPresentation is one complete room display: name, static description,
// trailing dynamic content, the exits line, and the terrain glyph taken from
// the prompt that closes the presentation.
type RoomPresentation struct {
	Name         string
	StaticDesc   string
	DynamicDesc  string
	TerrainGlyph byte
	Exits        []ExitInfo
	RawExits     string
}

func (RoomPresentation) event() {}

// MovementEcho reports that the server confirmed a movement. Dir is empty
// for non-geometric transitions such as portals and being swept by water.
type MovementEcho struct {
	Dir atlas.Direction
}

func (MovementEcho) event() {}

// Prompt reports a bare prompt with its terrain glyph, if any.
type Prompt struct {
	TerrainGlyph byte
}

func (Prompt) event() {}

// ParseError reports a malformed or incomplete boundary sequence. The event
// it would have belonged to is skipped; segmentation resumes at the next
// recognizable boundary.
type ParseError struct {
	Reason string
}

func (ParseError) event() {}
