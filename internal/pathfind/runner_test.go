package pathfind

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/config"
	"github.com/mapward/mapward/internal/mapper"
	"github.com/mapward/mapward/internal/stream"
)

type lineBuf struct {
	mu    sync.Mutex
	lines []string
}

func (b *lineBuf) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
}

func (b *lineBuf) joined() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

func runnerWorld(t *testing.T) (*atlas.Store, *mapper.Session, *lineBuf) {
	t.Helper()
	s := atlas.NewStore()
	a := s.CreateRoom(atlas.Seed{Name: "a", Desc: "a desc", Terrain: atlas.TerrainCity})
	b := s.CreateRoom(atlas.Seed{Name: "b", Desc: "b desc", Terrain: atlas.TerrainCity})
	c := s.CreateRoom(atlas.Seed{Name: "c", Desc: "c desc", Terrain: atlas.TerrainCity})
	require.NoError(t, s.AddLink(a, b, atlas.North, false))
	require.NoError(t, s.AddLink(b, c, atlas.North, false))

	out := &lineBuf{}
	cfg := config.MapperConfig{TentativeLookahead: 3}
	sess := mapper.NewSession(s, cfg, zap.NewNop(), out.add)
	require.NoError(t, sess.SyncTo(a))
	return s, sess, out
}

// worldSend simulates the game: each sent movement is confirmed by an echo
// and the presentation of the room actually arrived at.
func worldSend(s *atlas.Store, sess *mapper.Session, cur *atlas.Vnum) func(atlas.Direction) error {
	return func(dir atlas.Direction) error {
		room, _ := s.Room(*cur)
		exit, ok := room.ExitTo(dir)
		if !ok || exit.Target == atlas.Undefined {
			return nil
		}
		*cur = exit.Target
		target, _ := s.Room(exit.Target)
		sess.Apply(stream.MovementEcho{Dir: dir})
		sess.Apply(stream.RoomPresentation{Name: target.Name, StaticDesc: target.Desc})
		return nil
	}
}

func waitIdle(t *testing.T, r *Runner) {
	t.Helper()
	require.Eventually(t, func() bool { return !r.Active() }, 2*time.Second, 5*time.Millisecond)
}

func TestRunnerWalksPlanToTarget(t *testing.T) {
	s, sess, out := runnerWorld(t)
	cur := atlas.Vnum(0)
	r := NewRunner(sess, worldSend(s, sess, &cur), out.add, time.Second, zap.NewNop())

	plan, err := Compute(s, 0, 2, NewAvoidSet())
	require.NoError(t, err)
	require.NoError(t, r.Start(plan))
	waitIdle(t, r)

	assert.Equal(t, atlas.Vnum(2), cur)
	pos := sess.Position()
	assert.Equal(t, mapper.Synced, pos.State)
	assert.Equal(t, atlas.Vnum(2), pos.Room)
	assert.Contains(t, out.joined(), "arrived at vnum 2")
}

func TestRunnerRejectsConcurrentRuns(t *testing.T) {
	s, sess, out := runnerWorld(t)
	// A send that never confirms keeps the first run active.
	r := NewRunner(sess, func(atlas.Direction) error { return nil }, out.add, time.Minute, zap.NewNop())

	plan, err := Compute(s, 0, 2, NewAvoidSet())
	require.NoError(t, err)
	require.NoError(t, r.Start(plan))
	defer r.Stop()

	other, err := Compute(s, 0, 1, NewAvoidSet())
	require.NoError(t, err)
	assert.Error(t, r.Start(other))
}

func TestRunnerStop(t *testing.T) {
	s, sess, out := runnerWorld(t)
	r := NewRunner(sess, func(atlas.Direction) error { return nil }, out.add, time.Minute, zap.NewNop())

	plan, err := Compute(s, 0, 2, NewAvoidSet())
	require.NoError(t, err)
	require.NoError(t, r.Start(plan))

	require.Eventually(t, func() bool { return r.Stop() }, 2*time.Second, 5*time.Millisecond)
	waitIdle(t, r)
	assert.Contains(t, out.joined(), "run stopped")
	assert.False(t, r.Stop(), "stopping an idle runner reports false")
}

func TestRunnerStepTimeout(t *testing.T) {
	s, sess, out := runnerWorld(t)
	r := NewRunner(sess, func(atlas.Direction) error { return nil }, out.add, 30*time.Millisecond, zap.NewNop())

	plan, err := Compute(s, 0, 2, NewAvoidSet())
	require.NoError(t, err)
	require.NoError(t, r.Start(plan))
	waitIdle(t, r)

	assert.Contains(t, out.joined(), "no movement confirmation")
}

func TestRunnerReportsDeviation(t *testing.T) {
	s, sess, out := runnerWorld(t)
	// A shortcut room the current is swept into, with its own way to the target.
	d := s.CreateRoom(atlas.Seed{Name: "d", Desc: "d desc", Terrain: atlas.TerrainCity})
	require.NoError(t, s.AddLink(d, 2, atlas.East, false))

	send := func(dir atlas.Direction) error {
		// The server moves the player somewhere else entirely.
		sess.Apply(stream.MovementEcho{Dir: dir})
		sess.Apply(stream.RoomPresentation{Name: "d", StaticDesc: "d desc"})
		return nil
	}
	r := NewRunner(sess, send, out.add, time.Second, zap.NewNop())

	plan, err := Compute(s, 0, 2, NewAvoidSet())
	require.NoError(t, err)
	require.NoError(t, r.Start(plan))
	waitIdle(t, r)

	assert.Contains(t, out.joined(), "deviated: expected vnum 1, at vnum 3")
	pos := sess.Position()
	assert.Equal(t, mapper.Synced, pos.State)
	assert.Equal(t, d, pos.Room)
}

func TestRunnerContinueAfterDeviation(t *testing.T) {
	s, sess, out := runnerWorld(t)
	d := s.CreateRoom(atlas.Seed{Name: "d", Desc: "d desc", Terrain: atlas.TerrainCity})
	require.NoError(t, s.AddLink(d, 2, atlas.East, false))

	cur := atlas.Vnum(0)
	deviated := false
	send := func(dir atlas.Direction) error {
		if !deviated {
			deviated = true
			cur = d
			sess.Apply(stream.MovementEcho{Dir: dir})
			sess.Apply(stream.RoomPresentation{Name: "d", StaticDesc: "d desc"})
			return nil
		}
		return worldSend(s, sess, &cur)(dir)
	}
	r := NewRunner(sess, send, out.add, time.Second, zap.NewNop())

	plan, err := Compute(s, 0, 2, NewAvoidSet())
	require.NoError(t, err)
	require.NoError(t, r.Start(plan))
	waitIdle(t, r)
	require.Contains(t, out.joined(), "deviated")

	require.NoError(t, r.Continue())
	waitIdle(t, r)

	assert.Equal(t, atlas.Vnum(2), cur)
	assert.Contains(t, out.joined(), "arrived at vnum 2")
}

func TestRunnerContinueWithoutHistory(t *testing.T) {
	_, sess, out := runnerWorld(t)
	r := NewRunner(sess, func(atlas.Direction) error { return nil }, out.add, time.Second, zap.NewNop())
	assert.Error(t, r.Continue())
}
