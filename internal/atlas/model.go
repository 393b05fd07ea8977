// Package atlas provides the map graph model: rooms, exits, doors, labels,
// and the store that owns them.
package atlas

// Vnum is the stable unique integer identifier of a room.
type Vnum int

// Undefined marks an exit whose destination has not been mapped yet.
const Undefined Vnum = -1

// Direction represents one of the six geometric movement directions.
type Direction string

// The six directions a room exit may face.
const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
	Up    Direction = "up"
	Down  Direction = "down"
)

// Directions contains all six directions in presentation order.
var Directions = []Direction{North, East, South, West, Up, Down}

// IsValid reports whether d is one of the six directions.
func (d Direction) IsValid() bool {
	for _, dir := range Directions {
		if d == dir {
			return true
		}
	}
	return false
}

// Opposite returns the reverse of a direction.
// For an invalid direction, it returns an empty string.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Up:
		return Down
	case Down:
		return Up
	default:
		return ""
	}
}

// Offset returns the unit coordinate offset of a direction.
// North increases y, east increases x, up increases z.
func (d Direction) Offset() (dx, dy, dz int) {
	switch d {
	case North:
		return 0, 1, 0
	case South:
		return 0, -1, 0
	case East:
		return 1, 0, 0
	case West:
		return -1, 0, 0
	case Up:
		return 0, 0, 1
	case Down:
		return 0, 0, -1
	default:
		return 0, 0, 0
	}
}

// ParseDirection resolves a full or abbreviated direction name.
//
// Postcondition: Returns (direction, true) for any unambiguous prefix of a
// direction name, or ("", false) otherwise.
func ParseDirection(text string) (Direction, bool) {
	if text == "" {
		return "", false
	}
	var match Direction
	for _, dir := range Directions {
		if len(text) <= len(dir) && string(dir[:len(text)]) == text {
			if match != "" {
				return "", false
			}
			match = dir
		}
	}
	return match, match != ""
}

// Terrain classifies the ground of a room, mirroring the game's own classes.
type Terrain string

// Terrain classes. TerrainUndefined is the zero value for unexplored rooms.
const (
	TerrainUndefined  Terrain = "undefined"
	TerrainBuilding   Terrain = "building"
	TerrainCity       Terrain = "city"
	TerrainField      Terrain = "field"
	TerrainForest     Terrain = "forest"
	TerrainHills      Terrain = "hills"
	TerrainMountains  Terrain = "mountains"
	TerrainShallows   Terrain = "shallows"
	TerrainWater      Terrain = "water"
	TerrainRapids     Terrain = "rapids"
	TerrainUnderwater Terrain = "underwater"
	TerrainRoad       Terrain = "road"
	TerrainTunnel     Terrain = "tunnel"
	TerrainCavern     Terrain = "cavern"
	TerrainBrush      Terrain = "brush"
	TerrainRandom     Terrain = "random"
	TerrainDeathtrap  Terrain = "deathtrap"
)

// terrainGlyphs maps the single-character prompt glyph to its terrain class.
var terrainGlyphs = map[byte]Terrain{
	'[': TerrainBuilding,
	'#': TerrainCity,
	'.': TerrainField,
	'f': TerrainForest,
	'(': TerrainHills,
	'<': TerrainMountains,
	'%': TerrainShallows,
	'~': TerrainWater,
	'W': TerrainRapids,
	'U': TerrainUnderwater,
	'+': TerrainRoad,
	'=': TerrainTunnel,
	'O': TerrainCavern,
	':': TerrainBrush,
}

// TerrainForGlyph resolves a prompt glyph to its terrain class.
//
// Postcondition: Returns (terrain, true) for a known glyph, or
// (TerrainUndefined, false) otherwise.
func TerrainForGlyph(glyph byte) (Terrain, bool) {
	t, ok := terrainGlyphs[glyph]
	if !ok {
		return TerrainUndefined, false
	}
	return t, true
}

// ParseTerrain resolves a terrain class name.
func ParseTerrain(text string) (Terrain, bool) {
	for t := range terrainSurcharges {
		if string(t) == text {
			return t, true
		}
	}
	return "", false
}

// terrainSurcharges holds the per-terrain path cost added on top of the base
// move cost. All values must be non-negative so edge weights stay positive.
var terrainSurcharges = map[Terrain]float64{
	TerrainUndefined:  0.5,
	TerrainBuilding:   0.25,
	TerrainCity:       0.25,
	TerrainField:      0.75,
	TerrainForest:     1.25,
	TerrainHills:      1.75,
	TerrainMountains:  2.5,
	TerrainShallows:   2.0,
	TerrainWater:      3.0,
	TerrainRapids:     4.0,
	TerrainUnderwater: 5.0,
	TerrainRoad:       0.0,
	TerrainTunnel:     0.5,
	TerrainCavern:     0.75,
	TerrainBrush:      1.0,
	TerrainRandom:     10.0,
	TerrainDeathtrap:  50.0,
}

// Surcharge returns the path cost added when stepping into a room of this
// terrain. Unknown terrain falls back to the undefined surcharge.
func (t Terrain) Surcharge() float64 {
	if s, ok := terrainSurcharges[t]; ok {
		return s
	}
	return terrainSurcharges[TerrainUndefined]
}

// Alignment is the alignment influence of a room.
type Alignment string

// Alignment values.
const (
	AlignUndefined Alignment = "undefined"
	AlignGood      Alignment = "good"
	AlignNeutral   Alignment = "neutral"
	AlignEvil      Alignment = "evil"
)

// Light is the light level of a room.
type Light string

// Light values.
const (
	LightUndefined Light = "undefined"
	LightLit       Light = "lit"
	LightDark      Light = "dark"
)

// Portability records whether magical transport can target a room.
type Portability string

// Portability values.
const (
	PortUndefined Portability = "undefined"
	Portable      Portability = "portable"
	NotPortable   Portability = "notportable"
)

// Ridability records whether a mount can enter a room.
type Ridability string

// Ridability values.
const (
	RideUndefined Ridability = "undefined"
	Ridable       Ridability = "ridable"
	NotRidable    Ridability = "notridable"
)

// ExitFlag is a traversal property of an exit.
type ExitFlag string

// Exit traversal flags.
const (
	ExitNormal  ExitFlag = "exit"
	ExitDoor    ExitFlag = "door"
	ExitRoad    ExitFlag = "road"
	ExitClimb   ExitFlag = "climb"
	ExitRandom  ExitFlag = "random"
	ExitSpecial ExitFlag = "special"
	ExitAvoid   ExitFlag = "avoid"
	ExitNoMatch ExitFlag = "no_match"
)

// ExitFlags lists every valid exit flag.
var ExitFlags = []ExitFlag{
	ExitNormal, ExitDoor, ExitRoad, ExitClimb,
	ExitRandom, ExitSpecial, ExitAvoid, ExitNoMatch,
}

// ParseExitFlag resolves an exit flag name.
func ParseExitFlag(text string) (ExitFlag, bool) {
	for _, f := range ExitFlags {
		if string(f) == text {
			return f, true
		}
	}
	return "", false
}

// DoorFlag is a property of a door on an exit.
type DoorFlag string

// Door flags. Meaningful only when the exit's door-presence flag is set.
const (
	DoorHidden   DoorFlag = "hidden"
	DoorNeedKey  DoorFlag = "needkey"
	DoorNoBlock  DoorFlag = "noblock"
	DoorNoBreak  DoorFlag = "nobreak"
	DoorNoPick   DoorFlag = "nopick"
	DoorDelayed  DoorFlag = "delayed"
	DoorReserved DoorFlag = "reserved"
)

// DoorFlags lists every valid door flag.
var DoorFlags = []DoorFlag{
	DoorHidden, DoorNeedKey, DoorNoBlock,
	DoorNoBreak, DoorNoPick, DoorDelayed, DoorReserved,
}

// ParseDoorFlag resolves a door flag name.
func ParseDoorFlag(text string) (DoorFlag, bool) {
	for _, f := range DoorFlags {
		if string(f) == text {
			return f, true
		}
	}
	return "", false
}

// Coords is a room's position in map space. Rooms reached through
// non-geometric transitions (portals, random exits) have no coordinates.
type Coords struct {
	X int
	Y int
	Z int
}

// Shift returns the coordinates offset one unit in the given direction.
func (c Coords) Shift(d Direction) Coords {
	dx, dy, dz := d.Offset()
	return Coords{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Manhattan returns the Manhattan distance between two coordinates.
func (c Coords) Manhattan(o Coords) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y) + abs(c.Z-o.Z)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Exit represents a passage leading out of a room.
type Exit struct {
	// Target is the destination vnum, or Undefined when unmapped.
	Target Vnum
	// Flags holds the exit's traversal flags.
	Flags map[ExitFlag]bool
	// Door reports whether a door sits on this exit. Door name and flags are
	// meaningful only when it is set.
	Door bool
	// DoorName is the secret door's keyword, empty for ordinary doors.
	DoorName string
	// DoorFlags holds the door's properties.
	DoorFlags map[DoorFlag]bool
}

// NewExit returns an exit to the given target with the plain exit flag set.
func NewExit(target Vnum) *Exit {
	return &Exit{
		Target:    target,
		Flags:     map[ExitFlag]bool{ExitNormal: true},
		DoorFlags: map[DoorFlag]bool{},
	}
}

// Clone returns a deep copy of the exit.
func (e *Exit) Clone() *Exit {
	c := &Exit{
		Target:    e.Target,
		Flags:     make(map[ExitFlag]bool, len(e.Flags)),
		Door:      e.Door,
		DoorName:  e.DoorName,
		DoorFlags: make(map[DoorFlag]bool, len(e.DoorFlags)),
	}
	for f, on := range e.Flags {
		c.Flags[f] = on
	}
	for f, on := range e.DoorFlags {
		c.DoorFlags[f] = on
	}
	return c
}

// Room represents one location in the game world.
type Room struct {
	// Vnum uniquely identifies this room within a store.
	Vnum Vnum
	// Name is the short display name of the room.
	Name string
	// Desc is the static room description used as a matching key.
	Desc string
	// DynamicDesc is the variable content (mobs, items) last seen in the
	// room. It is advisory only and never used for matching.
	DynamicDesc string
	// Note is the free-text annotation attached by the player.
	Note string
	// Terrain is the room's terrain class.
	Terrain Terrain
	// Align is the room's alignment influence.
	Align Alignment
	// Light is the room's light level.
	Light Light
	// Portable records whether transport magic can target the room.
	Portable Portability
	// Ridable records whether mounts can enter the room.
	Ridable Ridability
	// Avoid excludes the room from computed paths unless it is an endpoint.
	Avoid bool
	// MobFlags marks mob categories present in the room.
	MobFlags map[string]bool
	// LoadFlags marks item load categories present in the room.
	LoadFlags map[string]bool
	// Coords is the room's map position, nil for non-geometric placements.
	Coords *Coords
	// Exits holds the room's passages keyed by direction.
	Exits map[Direction]*Exit
}

// NewRoom returns an empty room with the given vnum and initialized sets.
func NewRoom(vnum Vnum) *Room {
	return &Room{
		Vnum:      vnum,
		Terrain:   TerrainUndefined,
		Align:     AlignUndefined,
		Light:     LightUndefined,
		Portable:  PortUndefined,
		Ridable:   RideUndefined,
		MobFlags:  map[string]bool{},
		LoadFlags: map[string]bool{},
		Exits:     map[Direction]*Exit{},
	}
}

// ExitTo returns the exit in the given direction, if one exists.
func (r *Room) ExitTo(dir Direction) (*Exit, bool) {
	e, ok := r.Exits[dir]
	return e, ok
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	c := &Room{
		Vnum:        r.Vnum,
		Name:        r.Name,
		Desc:        r.Desc,
		DynamicDesc: r.DynamicDesc,
		Note:        r.Note,
		Terrain:     r.Terrain,
		Align:       r.Align,
		Light:       r.Light,
		Portable:    r.Portable,
		Ridable:     r.Ridable,
		Avoid:       r.Avoid,
		MobFlags:    make(map[string]bool, len(r.MobFlags)),
		LoadFlags:   make(map[string]bool, len(r.LoadFlags)),
		Exits:       make(map[Direction]*Exit, len(r.Exits)),
	}
	for f, on := range r.MobFlags {
		c.MobFlags[f] = on
	}
	for f, on := range r.LoadFlags {
		c.LoadFlags[f] = on
	}
	if r.Coords != nil {
		coords := *r.Coords
		c.Coords = &coords
	}
	for dir, e := range r.Exits {
		c.Exits[dir] = e.Clone()
	}
	return c
}
