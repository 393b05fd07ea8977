package atlas

import "errors"

// Sentinel errors returned by store operations.
var (
	// ErrRoomNotFound is returned when a vnum does not resolve to a room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrVnumInUse is returned when creating a room under an occupied vnum.
	ErrVnumInUse = errors.New("vnum already in use")
	// ErrConstraintViolation is returned when a mutation would break a graph
	// invariant, such as deleting a labeled room without cascade.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrLabelNotFound is returned when a label does not resolve.
	ErrLabelNotFound = errors.New("label not found")
	// ErrLabelExists is returned when adding a label that is already bound.
	ErrLabelExists = errors.New("label already exists")
	// ErrNoExit is returned when a direction has no exit on the room.
	ErrNoExit = errors.New("no exit in that direction")
	// ErrInvalidDirection is returned for directions outside the six handled.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrBadPattern is returned for an unparseable search pattern.
	ErrBadPattern = errors.New("bad search pattern")
)
