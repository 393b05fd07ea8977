package atlas

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// SearchField selects which room field a search scans.
type SearchField string

// Searchable fields.
const (
	FieldName SearchField = "name"
	FieldDesc SearchField = "desc"
	FieldNote SearchField = "note"
	FieldDoor SearchField = "door"
)

// SearchResult is one search hit with its Manhattan distance from the
// reference room.
type SearchResult struct {
	Vnum     Vnum
	Name     string
	Distance int
}

// unplacedDistance ranks rooms without coordinates after every placed room.
const unplacedDistance = 1 << 30

// Search scans the given field of every room for the pattern and returns up
// to limit hits ordered by ascending Manhattan distance from the reference
// room, ties broken by ascending vnum. The pattern may contain `*` and `?`
// wildcards; a pattern without wildcards matches as a case-insensitive
// substring. The scan observes a consistent snapshot of the store.
//
// Precondition: limit must be positive.
// Postcondition: Returns at most limit results, or ErrBadPattern.
func (s *Store) Search(field SearchField, pattern string, ref Vnum, limit int) ([]SearchResult, error) {
	var matcher glob.Glob
	if strings.ContainsAny(pattern, "*?[") {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("search %s %q: %w", field, pattern, ErrBadPattern)
		}
		matcher = g
	}
	needle := strings.ToLower(pattern)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var origin *Coords
	if refRoom, ok := s.rooms[ref]; ok {
		origin = refRoom.Coords
	}

	var results []SearchResult
	for _, r := range s.rooms {
		var haystacks []string
		switch field {
		case FieldName:
			haystacks = []string{r.Name}
		case FieldDesc:
			haystacks = []string{r.Desc}
		case FieldNote:
			haystacks = []string{r.Note}
		case FieldDoor:
			haystacks = doorNames(r)
		default:
			return nil, fmt.Errorf("search: unknown field %q: %w", field, ErrBadPattern)
		}
		matched := false
		for _, haystack := range haystacks {
			lowered := strings.ToLower(haystack)
			if matcher != nil {
				if matcher.Match(lowered) {
					matched = true
					break
				}
			} else if strings.Contains(lowered, needle) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		distance := unplacedDistance
		if origin != nil && r.Coords != nil {
			distance = origin.Manhattan(*r.Coords)
		}
		results = append(results, SearchResult{Vnum: r.Vnum, Name: r.Name, Distance: distance})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Vnum < results[j].Vnum
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// doorNames lists a room's door names for matching. An unnamed door matches
// as "door", the word the game accepts for it.
func doorNames(r *Room) []string {
	var names []string
	for _, exit := range r.Exits {
		if !exit.Door {
			continue
		}
		name := exit.DoorName
		if name == "" {
			name = "door"
		}
		names = append(names, name)
	}
	return names
}
