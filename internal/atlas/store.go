package atlas

import (
	"fmt"
	"sort"
	"sync"
)

// Store owns the room arena, the label table, and the text index. Every
// mutation runs as one critical section under the store mutex, so sessions
// sharing a store never observe a partially applied change. Read-only
// operations take the read lock and observe a consistent snapshot.
type Store struct {
	mu       sync.RWMutex
	rooms    map[Vnum]*Room
	labels   map[string]Vnum
	byText   map[string][]Vnum
	nextVnum Vnum
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms:  make(map[Vnum]*Room),
		labels: make(map[string]Vnum),
		byText: make(map[string][]Vnum),
	}
}

// textKey builds the index key for exact (name, static description) lookup.
func textKey(name, desc string) string {
	return name + "\x00" + desc
}

func (s *Store) indexAdd(r *Room) {
	key := textKey(r.Name, r.Desc)
	s.byText[key] = append(s.byText[key], r.Vnum)
	sort.Slice(s.byText[key], func(i, j int) bool { return s.byText[key][i] < s.byText[key][j] })
}

func (s *Store) indexRemove(r *Room) {
	key := textKey(r.Name, r.Desc)
	vnums := s.byText[key]
	for i, v := range vnums {
		if v == r.Vnum {
			s.byText[key] = append(vnums[:i], vnums[i+1:]...)
			break
		}
	}
	if len(s.byText[key]) == 0 {
		delete(s.byText, key)
	}
}

// RoomCount returns the number of rooms in the store.
func (s *Store) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Room returns a deep copy of the room with the given vnum.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
// The copy is detached; mutating it does not affect the store.
func (s *Store) Room(v Vnum) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[v]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// View runs fn with read access to the room arena and label table.
//
// Precondition: fn must not mutate or retain the maps or the rooms they hold.
// Postcondition: fn observed a consistent snapshot of the store.
func (s *Store) View(fn func(rooms map[Vnum]*Room, labels map[string]Vnum)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.rooms, s.labels)
}

// FindExact returns the vnums of all rooms whose name and static description
// both equal the given text, in ascending vnum order.
func (s *Store) FindExact(name, desc string) []Vnum {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := s.byText[textKey(name, desc)]
	out := make([]Vnum, len(hits))
	copy(out, hits)
	return out
}

// UpsertRoom inserts or replaces a room under its own vnum.
//
// Precondition: r.Vnum must be non-negative.
// Postcondition: The store holds a detached copy of r; the text index is
// updated; the vnum allocator never reissues r.Vnum.
func (s *Store) UpsertRoom(r *Room) error {
	if r.Vnum < 0 {
		return fmt.Errorf("upsert room: vnum %d: %w", r.Vnum, ErrConstraintViolation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.rooms[r.Vnum]; ok {
		s.indexRemove(old)
	}
	clone := r.Clone()
	s.rooms[clone.Vnum] = clone
	s.indexAdd(clone)
	if clone.Vnum >= s.nextVnum {
		s.nextVnum = clone.Vnum + 1
	}
	return nil
}

// Seed carries the observed fields of a room presentation used to create or
// refresh a room.
type Seed struct {
	Name        string
	Desc        string
	DynamicDesc string
	Terrain     Terrain
}

// CreateRoom allocates a fresh vnum and creates a room from the seed.
//
// Postcondition: Returns the new room's vnum; the room is indexed.
func (s *Store) CreateRoom(seed Seed) Vnum {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRoomLocked(seed)
}

func (s *Store) createRoomLocked(seed Seed) Vnum {
	v := s.nextVnum
	s.nextVnum++
	r := NewRoom(v)
	r.Name = seed.Name
	r.Desc = seed.Desc
	r.DynamicDesc = seed.DynamicDesc
	r.Terrain = seed.Terrain
	s.rooms[v] = r
	s.indexAdd(r)
	return v
}

// CreateLinkedRoom creates a room from the seed and links it from the given
// room in one atomic mutation, so no reader ever observes the room without
// its originating link. Coordinates are the origin's shifted one unit in dir
// when the origin has coordinates; otherwise they stay undefined. The
// reciprocal exit is created unless oneWay is set.
//
// Precondition: from must exist; dir must be valid.
// Postcondition: Returns the new vnum, or an error leaving the store unchanged.
func (s *Store) CreateLinkedRoom(from Vnum, dir Direction, seed Seed, oneWay bool) (Vnum, error) {
	if !dir.IsValid() {
		return Undefined, fmt.Errorf("create linked room: %q: %w", dir, ErrInvalidDirection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	origin, ok := s.rooms[from]
	if !ok {
		return Undefined, fmt.Errorf("create linked room: vnum %d: %w", from, ErrRoomNotFound)
	}

	v := s.createRoomLocked(seed)
	room := s.rooms[v]
	if origin.Coords != nil {
		coords := origin.Coords.Shift(dir)
		room.Coords = &coords
	}

	exit, ok := origin.Exits[dir]
	if !ok {
		exit = NewExit(v)
		origin.Exits[dir] = exit
	}
	exit.Target = v

	if !oneWay {
		room.Exits[dir.Opposite()] = NewExit(from)
	}
	return v, nil
}

// DeleteRoom removes a room. While labels still reference it and cascade is
// not requested, the deletion is rejected. With cascade, the labels are
// removed as well. Incoming exit targets become Undefined, never dangling.
//
// Postcondition: Returns nil and the room is gone, or an error leaving the
// store unchanged.
func (s *Store) DeleteRoom(v Vnum, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[v]
	if !ok {
		return fmt.Errorf("delete room: vnum %d: %w", v, ErrRoomNotFound)
	}

	var bound []string
	for name, target := range s.labels {
		if target == v {
			bound = append(bound, name)
		}
	}
	if len(bound) > 0 && !cascade {
		sort.Strings(bound)
		return fmt.Errorf("delete room: vnum %d still labeled %v: %w", v, bound, ErrConstraintViolation)
	}
	for _, name := range bound {
		delete(s.labels, name)
	}

	s.indexRemove(r)
	delete(s.rooms, v)
	for _, other := range s.rooms {
		for _, exit := range other.Exits {
			if exit.Target == v {
				exit.Target = Undefined
			}
		}
	}
	return nil
}

// AddLink connects two rooms in the given direction, creating or retargeting
// the exit. Unless oneWay is set, the reciprocal exit on the destination is
// created or retargeted as well.
//
// Precondition: Both rooms must exist; dir must be valid.
func (s *Store) AddLink(from, to Vnum, dir Direction, oneWay bool) error {
	if !dir.IsValid() {
		return fmt.Errorf("add link: %q: %w", dir, ErrInvalidDirection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.rooms[from]
	if !ok {
		return fmt.Errorf("add link: vnum %d: %w", from, ErrRoomNotFound)
	}
	dst, ok := s.rooms[to]
	if !ok {
		return fmt.Errorf("add link: vnum %d: %w", to, ErrRoomNotFound)
	}

	if exit, ok := src.Exits[dir]; ok {
		exit.Target = to
	} else {
		src.Exits[dir] = NewExit(to)
	}
	if !oneWay {
		back := dir.Opposite()
		if exit, ok := dst.Exits[back]; ok {
			exit.Target = from
		} else {
			dst.Exits[back] = NewExit(from)
		}
	}
	return nil
}

// RemoveLink removes the exit in the given direction. With both set, the
// reciprocal exit on the destination room is removed too.
func (s *Store) RemoveLink(from Vnum, dir Direction, both bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.rooms[from]
	if !ok {
		return fmt.Errorf("remove link: vnum %d: %w", from, ErrRoomNotFound)
	}
	exit, ok := src.Exits[dir]
	if !ok {
		return fmt.Errorf("remove link: vnum %d %s: %w", from, dir, ErrNoExit)
	}
	if both && exit.Target != Undefined {
		if dst, ok := s.rooms[exit.Target]; ok {
			back := dir.Opposite()
			if rev, ok := dst.Exits[back]; ok && rev.Target == from {
				delete(dst.Exits, back)
			}
		}
	}
	delete(src.Exits, dir)
	return nil
}

// Update applies fn to the room with the given vnum under the write lock.
// The text index is kept consistent when fn changes name or description.
//
// Precondition: fn must not retain the room past its return.
func (s *Store) Update(v Vnum, fn func(r *Room)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[v]
	if !ok {
		return fmt.Errorf("update room: vnum %d: %w", v, ErrRoomNotFound)
	}
	oldKey := textKey(r.Name, r.Desc)
	fn(r)
	if textKey(r.Name, r.Desc) != oldKey {
		s.indexRemoveKey(oldKey, r.Vnum)
		s.indexAdd(r)
	}
	return nil
}

func (s *Store) indexRemoveKey(key string, v Vnum) {
	vnums := s.byText[key]
	for i, got := range vnums {
		if got == v {
			s.byText[key] = append(vnums[:i], vnums[i+1:]...)
			break
		}
	}
	if len(s.byText[key]) == 0 {
		delete(s.byText, key)
	}
}

// UpdateExit applies fn to the exit of room v in direction dir under the
// write lock, creating an undefined exit first if none exists.
func (s *Store) UpdateExit(v Vnum, dir Direction, fn func(e *Exit)) error {
	if !dir.IsValid() {
		return fmt.Errorf("update exit: %q: %w", dir, ErrInvalidDirection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[v]
	if !ok {
		return fmt.Errorf("update exit: vnum %d: %w", v, ErrRoomNotFound)
	}
	exit, ok := r.Exits[dir]
	if !ok {
		exit = NewExit(Undefined)
		r.Exits[dir] = exit
	}
	fn(exit)
	return nil
}

// AddLabel binds a name to a vnum. Many labels may resolve to one vnum.
//
// Postcondition: The label resolves to an existing room, or an error is
// returned and nothing changes.
func (s *Store) AddLabel(name string, v Vnum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[v]; !ok {
		return fmt.Errorf("add label %q: vnum %d: %w", name, v, ErrRoomNotFound)
	}
	if existing, ok := s.labels[name]; ok {
		return fmt.Errorf("add label %q: already bound to vnum %d: %w", name, existing, ErrLabelExists)
	}
	s.labels[name] = v
	return nil
}

// RemoveLabel unbinds a label name.
func (s *Store) RemoveLabel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.labels[name]; !ok {
		return fmt.Errorf("remove label %q: %w", name, ErrLabelNotFound)
	}
	delete(s.labels, name)
	return nil
}

// ResolveLabel returns the vnum a label is bound to.
func (s *Store) ResolveLabel(name string) (Vnum, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.labels[name]
	return v, ok
}

// LabelsFor returns all labels bound to a vnum, sorted.
func (s *Store) LabelsFor(v Vnum) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, target := range s.labels {
		if target == v {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Labels returns a copy of the whole label table.
func (s *Store) Labels() map[string]Vnum {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Vnum, len(s.labels))
	for name, v := range s.labels {
		out[name] = v
	}
	return out
}

// Merge folds the duplicate room dup into keep: incoming exits and labels
// are re-pointed at keep, keep adopts any fields it is missing, and dup is
// deleted. Used by the auto-merge policy when two sessions race to create
// equivalent rooms; the lower vnum survives.
//
// Precondition: keep and dup must exist and differ.
func (s *Store) Merge(keep, dup Vnum) error {
	if keep == dup {
		return fmt.Errorf("merge: vnum %d into itself: %w", keep, ErrConstraintViolation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.rooms[keep]
	if !ok {
		return fmt.Errorf("merge: vnum %d: %w", keep, ErrRoomNotFound)
	}
	source, ok := s.rooms[dup]
	if !ok {
		return fmt.Errorf("merge: vnum %d: %w", dup, ErrRoomNotFound)
	}

	for dir, exit := range source.Exits {
		if _, ok := target.Exits[dir]; !ok {
			target.Exits[dir] = exit.Clone()
		}
	}
	if target.Coords == nil && source.Coords != nil {
		coords := *source.Coords
		target.Coords = &coords
	}
	if target.Note == "" {
		target.Note = source.Note
	}

	for name, v := range s.labels {
		if v == dup {
			s.labels[name] = keep
		}
	}
	s.indexRemove(source)
	delete(s.rooms, dup)
	for _, other := range s.rooms {
		for _, exit := range other.Exits {
			if exit.Target == dup {
				exit.Target = keep
			}
		}
	}
	return nil
}
