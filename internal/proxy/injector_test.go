package proxy

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu  sync.Mutex
	buf []byte
}

func (s *sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// pipeInjector wires an injector to one end of a pipe and drains the other
// end into a sink.
func pipeInjector(t *testing.T) (*injector, *sink) {
	t.Helper()
	client, relay := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		relay.Close()
	})

	out := &sink{}
	go func() {
		tmp := make([]byte, 256)
		for {
			n, err := client.Read(tmp)
			if n > 0 {
				out.mu.Lock()
				out.buf = append(out.buf, tmp[:n]...)
				out.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return newInjector(relay, time.Second), out
}

func waitFor(t *testing.T, out *sink, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return out.String() == want },
		2*time.Second, 5*time.Millisecond, "got %q", out.String())
}

func TestInjectAtBoundaryWritesImmediately(t *testing.T) {
	inj, out := pipeInjector(t)
	inj.Inject("[mapper] hello")
	waitFor(t, out, "[mapper] hello\r\n")
}

func TestInjectMidLineIsDeferred(t *testing.T) {
	inj, out := pipeInjector(t)

	require.NoError(t, inj.Relay([]byte("You see a tr")))
	inj.Inject("[mapper] note")
	waitFor(t, out, "You see a tr")

	require.NoError(t, inj.Relay([]byte("oll here.\n")))
	waitFor(t, out, "You see a troll here.\n[mapper] note\r\n")
}

func TestInjectFlushesQueueInOrder(t *testing.T) {
	inj, out := pipeInjector(t)

	require.NoError(t, inj.Relay([]byte("half")))
	inj.Inject("first")
	inj.Inject("second")
	require.NoError(t, inj.Relay([]byte(" done\n")))

	waitFor(t, out, "half done\nfirst\r\nsecond\r\n")
}

func TestRelayEmptyChunkKeepsBoundary(t *testing.T) {
	inj, out := pipeInjector(t)
	require.NoError(t, inj.Relay(nil))
	inj.Inject("still boundary")
	waitFor(t, out, "still boundary\r\n")
	assert.Empty(t, inj.pending)
}
