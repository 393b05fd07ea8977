package proxy

import (
	"net"
	"sync"
	"time"
)

// injector serializes all writes to the client connection. Synthesized
// mapper lines are held until the relayed stream is at a line boundary
// so injected text never splits a server line in the client's display.
type injector struct {
	mu           sync.Mutex
	conn         net.Conn
	writeTimeout time.Duration
	atBoundary   bool
	pending      []string
}

func newInjector(conn net.Conn, writeTimeout time.Duration) *injector {
	return &injector{
		conn:         conn,
		writeTimeout: writeTimeout,
		atBoundary:   true,
	}
}

// Relay forwards a chunk of the server stream to the client and flushes
// any pending synthesized lines once the chunk ends on a line boundary.
func (j *injector) Relay(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writeLocked(p); err != nil {
		return err
	}
	j.atBoundary = p[len(p)-1] == '\n'
	if j.atBoundary {
		return j.flushLocked()
	}
	return nil
}

// Inject queues one synthesized line for the client. The line is written
// immediately when the stream is at a line boundary, otherwise it is
// deferred until the next boundary.
func (j *injector) Inject(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pending = append(j.pending, line)
	if j.atBoundary {
		_ = j.flushLocked()
	}
}

func (j *injector) flushLocked() error {
	for len(j.pending) > 0 {
		line := j.pending[0]
		j.pending = j.pending[1:]
		if err := j.writeLocked([]byte(line + "\r\n")); err != nil {
			return err
		}
	}
	return nil
}

func (j *injector) writeLocked(p []byte) error {
	if j.writeTimeout > 0 {
		_ = j.conn.SetWriteDeadline(time.Now().Add(j.writeTimeout))
	}
	_, err := j.conn.Write(p)
	return err
}
