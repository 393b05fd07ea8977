package atlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seedRoom(name string) Seed {
	return Seed{Name: name, Desc: name + " described.", Terrain: TerrainCity}
}

func TestCreateRoomAllocatesUniqueVnums(t *testing.T) {
	s := NewStore()
	rapid.Check(t, func(t *rapid.T) {
		seen := map[Vnum]bool{}
		n := rapid.IntRange(1, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			v := s.CreateRoom(seedRoom("room"))
			assert.False(t, seen[v], "vnum %d reissued", v)
			seen[v] = true
		}
	})
}

func TestRoomReturnsDetachedCopy(t *testing.T) {
	s := NewStore()
	v := s.CreateRoom(seedRoom("square"))

	got, ok := s.Room(v)
	require.True(t, ok)
	got.Name = "tampered"

	again, ok := s.Room(v)
	require.True(t, ok)
	assert.Equal(t, "square", again.Name)
}

func TestCreateLinkedRoomLinksAndPlaces(t *testing.T) {
	s := NewStore()
	origin := s.CreateRoom(seedRoom("origin"))
	require.NoError(t, s.Update(origin, func(r *Room) {
		r.Coords = &Coords{X: 0, Y: 0, Z: 0}
	}))

	v, err := s.CreateLinkedRoom(origin, North, seedRoom("north room"), false)
	require.NoError(t, err)

	from, _ := s.Room(origin)
	exit, ok := from.ExitTo(North)
	require.True(t, ok)
	assert.Equal(t, v, exit.Target)

	to, _ := s.Room(v)
	back, ok := to.ExitTo(South)
	require.True(t, ok)
	assert.Equal(t, origin, back.Target)
	require.NotNil(t, to.Coords)
	assert.Equal(t, Coords{X: 0, Y: 1, Z: 0}, *to.Coords)
}

func TestCreateLinkedRoomOneWay(t *testing.T) {
	s := NewStore()
	origin := s.CreateRoom(seedRoom("origin"))

	v, err := s.CreateLinkedRoom(origin, East, seedRoom("east room"), true)
	require.NoError(t, err)

	to, _ := s.Room(v)
	_, ok := to.ExitTo(West)
	assert.False(t, ok)

	// Origin without coordinates leaves the new room unplaced.
	assert.Nil(t, to.Coords)
}

func TestCreateLinkedRoomRejectsBadInput(t *testing.T) {
	s := NewStore()
	_, err := s.CreateLinkedRoom(99, North, seedRoom("x"), false)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	v := s.CreateRoom(seedRoom("x"))
	_, err = s.CreateLinkedRoom(v, Direction("inward"), seedRoom("y"), false)
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestDeleteRoomClearsIncomingTargets(t *testing.T) {
	s := NewStore()
	a := s.CreateRoom(seedRoom("a"))
	b, err := s.CreateLinkedRoom(a, North, seedRoom("b"), false)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRoom(b, false))

	_, ok := s.Room(b)
	assert.False(t, ok)
	room, _ := s.Room(a)
	exit, ok := room.ExitTo(North)
	require.True(t, ok)
	assert.Equal(t, Undefined, exit.Target)
}

func TestDeleteRoomLabelConstraint(t *testing.T) {
	s := NewStore()
	v := s.CreateRoom(seedRoom("temple"))
	require.NoError(t, s.AddLabel("temple", v))

	err := s.DeleteRoom(v, false)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	_, ok := s.Room(v)
	assert.True(t, ok, "rejected delete must leave the room")

	require.NoError(t, s.DeleteRoom(v, true))
	_, ok = s.ResolveLabel("temple")
	assert.False(t, ok)
}

func TestAddLinkReciprocal(t *testing.T) {
	s := NewStore()
	a := s.CreateRoom(seedRoom("a"))
	b := s.CreateRoom(seedRoom("b"))

	require.NoError(t, s.AddLink(a, b, Up, false))

	ra, _ := s.Room(a)
	assert.Equal(t, b, ra.Exits[Up].Target)
	rb, _ := s.Room(b)
	assert.Equal(t, a, rb.Exits[Down].Target)
}

func TestRemoveLinkBoth(t *testing.T) {
	s := NewStore()
	a := s.CreateRoom(seedRoom("a"))
	b := s.CreateRoom(seedRoom("b"))
	require.NoError(t, s.AddLink(a, b, West, false))

	require.NoError(t, s.RemoveLink(a, West, true))

	ra, _ := s.Room(a)
	_, ok := ra.ExitTo(West)
	assert.False(t, ok)
	rb, _ := s.Room(b)
	_, ok = rb.ExitTo(East)
	assert.False(t, ok)

	err := s.RemoveLink(a, West, false)
	assert.ErrorIs(t, err, ErrNoExit)
}

func TestUpdateKeepsIndexConsistent(t *testing.T) {
	s := NewStore()
	v := s.CreateRoom(Seed{Name: "old name", Desc: "old desc"})

	assert.Equal(t, []Vnum{v}, s.FindExact("old name", "old desc"))

	require.NoError(t, s.Update(v, func(r *Room) {
		r.Name = "new name"
	}))

	assert.Empty(t, s.FindExact("old name", "old desc"))
	assert.Equal(t, []Vnum{v}, s.FindExact("new name", "old desc"))
}

func TestUpsertRoomAdvancesAllocator(t *testing.T) {
	s := NewStore()
	r := NewRoom(10)
	r.Name = "imported"
	require.NoError(t, s.UpsertRoom(r))

	v := s.CreateRoom(seedRoom("fresh"))
	assert.Greater(t, int(v), 10)

	bad := NewRoom(-5)
	assert.ErrorIs(t, s.UpsertRoom(bad), ErrConstraintViolation)
}

func TestLabels(t *testing.T) {
	s := NewStore()
	v := s.CreateRoom(seedRoom("inn"))

	require.NoError(t, s.AddLabel("inn", v))
	require.NoError(t, s.AddLabel("home", v))
	assert.ErrorIs(t, s.AddLabel("inn", v), ErrLabelExists)
	assert.ErrorIs(t, s.AddLabel("ghost", 99), ErrRoomNotFound)

	got, ok := s.ResolveLabel("home")
	require.True(t, ok)
	assert.Equal(t, v, got)
	assert.Equal(t, []string{"home", "inn"}, s.LabelsFor(v))

	require.NoError(t, s.RemoveLabel("home"))
	assert.ErrorIs(t, s.RemoveLabel("home"), ErrLabelNotFound)
}

func TestMergeFoldsDuplicate(t *testing.T) {
	s := NewStore()
	keep := s.CreateRoom(seedRoom("square"))
	dup := s.CreateRoom(seedRoom("square"))
	other := s.CreateRoom(seedRoom("side street"))

	require.NoError(t, s.AddLink(other, dup, North, true))
	require.NoError(t, s.AddLabel("square", dup))
	require.NoError(t, s.Update(dup, func(r *Room) {
		r.Note = "fountain here"
		r.Coords = &Coords{X: 3, Y: 3, Z: 0}
	}))

	require.NoError(t, s.Merge(keep, dup))

	_, ok := s.Room(dup)
	assert.False(t, ok)

	// Incoming exits and labels re-point at the survivor.
	ro, _ := s.Room(other)
	assert.Equal(t, keep, ro.Exits[North].Target)
	got, ok := s.ResolveLabel("square")
	require.True(t, ok)
	assert.Equal(t, keep, got)

	// The survivor adopts fields it was missing.
	rk, _ := s.Room(keep)
	assert.Equal(t, "fountain here", rk.Note)
	require.NotNil(t, rk.Coords)
	assert.Equal(t, 3, rk.Coords.X)

	assert.ErrorIs(t, s.Merge(keep, keep), ErrConstraintViolation)
}

func TestFindExactOrdersByVnum(t *testing.T) {
	s := NewStore()
	a := s.CreateRoom(Seed{Name: "twin", Desc: "same"})
	b := s.CreateRoom(Seed{Name: "twin", Desc: "same"})
	assert.Equal(t, []Vnum{a, b}, s.FindExact("twin", "same"))
}
