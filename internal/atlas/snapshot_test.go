package atlas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	a := s.CreateRoom(Seed{Name: "Gate", Desc: "The city gate.", Terrain: TerrainCity})
	require.NoError(t, s.Update(a, func(r *Room) {
		r.Coords = &Coords{X: 0, Y: 0, Z: 0}
		r.Note = "guards at night"
		r.Align = AlignGood
		r.Light = LightLit
		r.MobFlags["guard"] = true
	}))
	b, err := s.CreateLinkedRoom(a, North, Seed{Name: "Road", Desc: "A muddy road.", Terrain: TerrainRoad}, false)
	require.NoError(t, err)
	require.NoError(t, s.UpdateExit(a, North, func(e *Exit) {
		e.Door = true
		e.DoorName = "portcullis"
		e.DoorFlags[DoorNoBreak] = true
		e.Flags[ExitDoor] = true
	}))
	require.NoError(t, s.AddLabel("gate", a))

	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, s.RoomCount(), loaded.RoomCount())
	got, ok := loaded.Room(a)
	require.True(t, ok)
	want, _ := s.Room(a)
	assert.Equal(t, want, got)

	gotB, ok := loaded.Room(b)
	require.True(t, ok)
	assert.Equal(t, a, gotB.Exits[South].Target)

	v, ok := loaded.ResolveLabel("gate")
	require.True(t, ok)
	assert.Equal(t, a, v)
}

func TestSnapshotPreservesUnmappedExit(t *testing.T) {
	s := NewStore()
	v := s.CreateRoom(Seed{Name: "Edge", Desc: "Unknown lands east."})
	require.NoError(t, s.UpdateExit(v, East, func(e *Exit) {}))

	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	room, _ := loaded.Room(v)
	exit, ok := room.ExitTo(East)
	require.True(t, ok)
	assert.Equal(t, Undefined, exit.Target)
}

func TestSnapshotPreservesOneWayLink(t *testing.T) {
	s := NewStore()
	a := s.CreateRoom(Seed{Name: "Ledge", Desc: "A sheer drop."})
	b, err := s.CreateLinkedRoom(a, Down, Seed{Name: "Ravine", Desc: "The bottom."}, true)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	bottom, _ := loaded.Room(b)
	_, ok := bottom.ExitTo(Up)
	assert.False(t, ok)
}

func TestSaveAllocatesAfterLoad(t *testing.T) {
	s := NewStore()
	s.CreateRoom(Seed{Name: "one"})
	high := NewRoom(50)
	high.Name = "imported"
	require.NoError(t, s.UpsertRoom(high))

	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, s.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	v := loaded.CreateRoom(Seed{Name: "fresh"})
	assert.Greater(t, int(v), 50)
}

func TestLoadRejectsDanglingTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rooms:
  - vnum: 0
    name: lonely
    exits:
      - dir: north
        target: 7
`), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLoadRejectsDanglingLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rooms:
  - vnum: 0
    name: lonely
labels:
  ghost: 9
`), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLoadRejectsDuplicateVnum(t *testing.T) {
	_, err := LoadBytes([]byte(`
rooms:
  - vnum: 3
    name: first
  - vnum: 3
    name: second
`))
	assert.ErrorIs(t, err, ErrVnumInUse)
}

func TestLoadRejectsBadDirection(t *testing.T) {
	_, err := LoadBytes([]byte(`
rooms:
  - vnum: 0
    name: lonely
    exits:
      - dir: sideways
`))
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestLoadOrCreateMissingFile(t *testing.T) {
	s, err := LoadOrCreate(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.RoomCount())
}

func TestSnapshotRoundTripProperty(t *testing.T) {
	terrains := []Terrain{TerrainUndefined, TerrainCity, TerrainForest, TerrainRoad, TerrainWater}
	dir := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		n := rapid.IntRange(1, 8).Draw(t, "rooms")
		vnums := make([]Vnum, 0, n)
		for i := 0; i < n; i++ {
			v := s.CreateRoom(Seed{
				Name:    rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(t, "name"),
				Desc:    rapid.StringMatching(`[A-Za-z .]{0,40}`).Draw(t, "desc"),
				Terrain: rapid.SampledFrom(terrains).Draw(t, "terrain"),
			})
			vnums = append(vnums, v)
		}
		links := rapid.IntRange(0, n*2).Draw(t, "links")
		for i := 0; i < links; i++ {
			from := rapid.SampledFrom(vnums).Draw(t, "from")
			to := rapid.SampledFrom(vnums).Draw(t, "to")
			linkDir := rapid.SampledFrom(Directions).Draw(t, "dir")
			oneWay := rapid.Bool().Draw(t, "oneway")
			require.NoError(t, s.AddLink(from, to, linkDir, oneWay))
		}

		path := filepath.Join(dir, "map.yaml")
		require.NoError(t, s.Save(path))
		loaded, err := Load(path)
		require.NoError(t, err)

		require.Equal(t, s.RoomCount(), loaded.RoomCount())
		for _, v := range vnums {
			want, _ := s.Room(v)
			got, ok := loaded.Room(v)
			require.True(t, ok)
			require.Equal(t, want, got)
		}
	})
}
