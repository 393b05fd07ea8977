package mapper

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/config"
	"github.com/mapward/mapward/internal/stream"
)

// Transition reports one synchronization state change to observers.
type Transition struct {
	// From and To are the positions before and after the event.
	From Position
	To   Position
	// Moved reports whether the transition was caused by a confirmed
	// movement, and Dir its direction ("" for non-geometric transitions).
	Moved bool
	Dir   atlas.Direction
}

// Session is the per-connection synchronization context. One goroutine (the
// server-relay pump) feeds Apply; the mutex exists only so command handlers
// on the client pump may read position and toggles concurrently.
type Session struct {
	ID string

	store  *atlas.Store
	logger *zap.Logger

	mu         sync.Mutex
	pos        Position
	lastPres   *stream.RoomPresentation
	moveQueue  []atlas.Direction
	tentAge    int
	lookahead  int
	autoMap    bool
	autoLink   bool
	autoMerge  bool
	autoUpdate bool
	showVnum   bool

	output    func(line string)
	observers []chan Transition
}

// NewSession creates a session over the shared store.
//
// Precondition: store and logger must be non-nil; output may be nil.
// Postcondition: Returns a session in the Unsynced state.
func NewSession(store *atlas.Store, cfg config.MapperConfig, logger *zap.Logger, output func(line string)) *Session {
	if output == nil {
		output = func(string) {}
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		store:      store,
		logger:     logger.With(zap.String("session_id", id)),
		lookahead:  cfg.TentativeLookahead,
		autoMap:    cfg.AutoMap,
		autoLink:   cfg.AutoLink,
		autoMerge:  cfg.AutoMerge,
		autoUpdate: cfg.AutoUpdate,
		output:     output,
	}
}

// Store returns the shared atlas store.
func (s *Session) Store() *atlas.Store { return s.store }

// Position returns the session's current-position belief.
func (s *Session) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Toggle flips one of the auto-mapping toggles and returns its new value.
//
// Precondition: name must be one of automap, autolink, automerge,
// autoupdate, vnum.
func (s *Session) Toggle(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case "automap":
		s.autoMap = !s.autoMap
		return s.autoMap, nil
	case "autolink":
		s.autoLink = !s.autoLink
		return s.autoLink, nil
	case "automerge":
		s.autoMerge = !s.autoMerge
		return s.autoMerge, nil
	case "autoupdate":
		s.autoUpdate = !s.autoUpdate
		return s.autoUpdate, nil
	case "vnum":
		s.showVnum = !s.showVnum
		return s.showVnum, nil
	default:
		return false, fmt.Errorf("unknown toggle %q", name)
	}
}

// Subscribe registers an observer for position transitions. The returned
// cancel function removes it. Sends never block the pipeline; a slow
// observer misses transitions instead of stalling the relay.
func (s *Session) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, 16)
	s.mu.Lock()
	s.observers = append(s.observers, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, obs := range s.observers {
			if obs == ch {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (s *Session) notifyLocked(t Transition) {
	for _, obs := range s.observers {
		select {
		case obs <- t:
		default:
		}
	}
}

// Apply consumes one segmented event and advances the state machine.
// Any graph mutation it performs (room or link creation) commits atomically
// with the state transition.
func (s *Session) Apply(event stream.Event) {
	switch ev := event.(type) {
	case stream.MovementEcho:
		s.mu.Lock()
		s.moveQueue = append(s.moveQueue, ev.Dir)
		s.mu.Unlock()
	case stream.RoomPresentation:
		s.applyPresentation(ev)
	case stream.ParseError:
		s.logger.Warn("presentation parse error", zap.String("reason", ev.Reason))
	case stream.Prompt:
		// Bare prompts carry no position information.
	}
}

func (s *Session) applyPresentation(pres stream.RoomPresentation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dir atlas.Direction
	moved := false
	if len(s.moveQueue) > 0 {
		dir = s.moveQueue[0]
		s.moveQueue = s.moveQueue[1:]
		moved = true
	}

	from := s.pos
	s.lastPres = &pres

	match := MatchPresentation(s.store, pres, dir, s.pos)
	if match.Kind == AmbiguousMatch && s.autoMerge {
		match = s.mergeCandidates(match)
	}

	switch match.Kind {
	case ExactMatch:
		s.pos = SyncedAt(match.Room)
		s.tentAge = 0
		if s.autoUpdate {
			s.refreshRoom(match.Room, pres)
		}
		if moved && from.State == Synced && s.autoLink {
			s.linkObserved(from.Room, dir, match.Room)
		}
	case AmbiguousMatch:
		if from.State == Tentative {
			prior := from.Candidates
			if moved {
				prior = s.advanceCandidates(prior, dir)
			}
			narrowed := intersect(prior, match.Candidates)
			if len(narrowed) == 1 {
				s.pos = SyncedAt(narrowed[0])
				s.tentAge = 0
				break
			}
			if len(narrowed) > 1 {
				match.Candidates = narrowed
			}
			s.tentAge++
			if s.tentAge >= s.lookahead {
				s.pos = Position{State: Unsynced}
				s.tentAge = 0
				s.warn("lost position: still ambiguous after %d events", s.lookahead)
				break
			}
		} else {
			s.tentAge = 1
		}
		s.pos = Position{State: Tentative, Candidates: match.Candidates}
	case NoMatch:
		switch {
		case from.State == Synced && moved && s.autoMap:
			var vnum atlas.Vnum
			if dir.IsValid() {
				created, err := s.store.CreateLinkedRoom(from.Room, dir, presentationSeed(pres), !s.autoLink)
				if err != nil {
					s.logger.Error("auto-mapping new room", zap.Error(err))
					s.pos = Position{State: Unsynced}
					s.warn("lost position: could not map new room")
					break
				}
				vnum = created
			} else {
				// Non-geometric transition: the room exists but cannot be
				// linked or placed.
				vnum = s.store.CreateRoom(presentationSeed(pres))
			}
			s.pos = SyncedAt(vnum)
			s.logger.Info("auto-mapped room",
				zap.Int("vnum", int(vnum)),
				zap.String("name", pres.Name),
				zap.String("dir", string(dir)),
			)
		default:
			if from.State != Unsynced {
				s.warn("lost position: no room matches %q", pres.Name)
			}
			s.pos = Position{State: Unsynced}
		}
		s.tentAge = 0
	}

	if s.showVnum && s.pos.State == Synced {
		s.output(fmt.Sprintf("[mapper] vnum %d.", s.pos.Room))
	}
	s.notifyLocked(Transition{From: from, To: s.pos, Moved: moved, Dir: dir})
}

// presentationSeed converts a presentation into the seed for a new room.
func presentationSeed(pres stream.RoomPresentation) atlas.Seed {
	seed := atlas.Seed{
		Name:        pres.Name,
		Desc:        pres.StaticDesc,
		DynamicDesc: pres.DynamicDesc,
		Terrain:     atlas.TerrainUndefined,
	}
	if pres.TerrainGlyph != 0 {
		if t, ok := atlas.TerrainForGlyph(pres.TerrainGlyph); ok {
			seed.Terrain = t
		}
	}
	return seed
}

// refreshRoom updates stored advisory fields from a fresh presentation.
// Static description is refreshed only when the presentation carries one.
func (s *Session) refreshRoom(v atlas.Vnum, pres stream.RoomPresentation) {
	err := s.store.Update(v, func(r *atlas.Room) {
		r.DynamicDesc = pres.DynamicDesc
		if pres.StaticDesc != "" {
			r.Desc = pres.StaticDesc
		}
		if pres.TerrainGlyph != 0 {
			if t, ok := atlas.TerrainForGlyph(pres.TerrainGlyph); ok {
				r.Terrain = t
			}
		}
	})
	if err != nil {
		s.logger.Warn("auto-updating room", zap.Int("vnum", int(v)), zap.Error(err))
	}
}

// linkObserved records an observed movement between two known rooms when the
// origin's exit is missing or unmapped. The reciprocal exit is created
// unless the arrival room already has a defined exit back in the opposite
// direction pointing elsewhere, which is evidence of a one-way passage.
func (s *Session) linkObserved(from atlas.Vnum, dir atlas.Direction, to atlas.Vnum) {
	if !dir.IsValid() || from == to {
		return
	}
	origin, ok := s.store.Room(from)
	if !ok {
		return
	}
	if exit, ok := origin.ExitTo(dir); ok && exit.Target == to {
		return
	}

	oneWay := false
	if arrival, ok := s.store.Room(to); ok {
		if back, ok := arrival.ExitTo(dir.Opposite()); ok && back.Target != atlas.Undefined && back.Target != from {
			oneWay = true
		}
	}
	if err := s.store.AddLink(from, to, dir, oneWay); err != nil {
		s.logger.Warn("auto-linking rooms",
			zap.Int("from", int(from)),
			zap.Int("to", int(to)),
			zap.String("dir", string(dir)),
			zap.Error(err),
		)
	}
}

// mergeCandidates folds duplicate candidate rooms created by racing sessions
// into the lowest vnum when they occupy the same coordinates (or none).
// If everything merges, the ambiguity resolves to an exact match.
func (s *Session) mergeCandidates(match Match) Match {
	keep := match.Candidates[0]
	for _, v := range match.Candidates {
		if v < keep {
			keep = v
		}
	}
	keepRoom, ok := s.store.Room(keep)
	if !ok {
		return match
	}

	remaining := []atlas.Vnum{keep}
	for _, v := range match.Candidates {
		if v == keep {
			continue
		}
		r, ok := s.store.Room(v)
		if !ok {
			continue
		}
		if !sameCoords(keepRoom.Coords, r.Coords) {
			remaining = append(remaining, v)
			continue
		}
		if err := s.store.Merge(keep, v); err != nil {
			s.logger.Warn("merging duplicate rooms",
				zap.Int("keep", int(keep)),
				zap.Int("dup", int(v)),
				zap.Error(err),
			)
			remaining = append(remaining, v)
			continue
		}
		s.logger.Info("merged duplicate room",
			zap.Int("keep", int(keep)),
			zap.Int("dup", int(v)),
		)
	}

	if len(remaining) == 1 {
		return Match{Kind: ExactMatch, Room: keep}
	}
	return Match{Kind: AmbiguousMatch, Candidates: remaining}
}

func sameCoords(a, b *atlas.Coords) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// advanceCandidates projects a tentative candidate set through a confirmed
// movement: each candidate maps to the target of its exit in dir. Candidates
// without a defined exit that way cannot be where the player came from and
// are dropped.
func (s *Session) advanceCandidates(candidates []atlas.Vnum, dir atlas.Direction) []atlas.Vnum {
	if !dir.IsValid() {
		return nil
	}
	seen := make(map[atlas.Vnum]bool, len(candidates))
	var out []atlas.Vnum
	for _, v := range candidates {
		r, ok := s.store.Room(v)
		if !ok {
			continue
		}
		exit, ok := r.ExitTo(dir)
		if !ok || exit.Target == atlas.Undefined {
			continue
		}
		if !seen[exit.Target] {
			seen[exit.Target] = true
			out = append(out, exit.Target)
		}
	}
	return out
}

func intersect(a, b []atlas.Vnum) []atlas.Vnum {
	inA := make(map[atlas.Vnum]bool, len(a))
	for _, v := range a {
		inA[v] = true
	}
	var out []atlas.Vnum
	for _, v := range b {
		if inA[v] {
			out = append(out, v)
		}
	}
	return out
}

// SyncTo forces the position to the given room, overriding automatic
// inference, from any state.
func (s *Session) SyncTo(v atlas.Vnum) error {
	if _, ok := s.store.Room(v); !ok {
		return fmt.Errorf("sync to vnum %d: %w", v, atlas.ErrRoomNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.pos
	s.pos = SyncedAt(v)
	s.tentAge = 0
	s.moveQueue = nil
	s.notifyLocked(Transition{From: from, To: s.pos})
	return nil
}

// Desync drops the position belief, then immediately attempts an automatic
// resync against the most recent presentation.
//
// Postcondition: Returns the resulting position.
func (s *Session) Desync() Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.pos
	s.pos = Position{State: Unsynced}
	s.tentAge = 0
	s.moveQueue = nil

	if s.lastPres != nil {
		match := MatchPresentation(s.store, *s.lastPres, "", s.pos)
		switch match.Kind {
		case ExactMatch:
			s.pos = SyncedAt(match.Room)
		case AmbiguousMatch:
			s.pos = Position{State: Tentative, Candidates: match.Candidates}
			s.tentAge = 1
		}
	}

	s.notifyLocked(Transition{From: from, To: s.pos})
	return s.pos
}

// warn emits a synthesized warning line to the client and the log.
func (s *Session) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn(msg)
	s.output("[mapper] " + msg)
}
