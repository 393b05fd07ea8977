package testutil

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeServer is a scripted stand-in for the game server. It accepts one
// connection and lets a test push raw stream bytes downstream and read
// what the relay forwarded upstream.
type FakeServer struct {
	t        *testing.T
	listener net.Listener

	mu       sync.Mutex
	conn     net.Conn
	reader   *bufio.Reader
	accepted chan struct{}
}

// NewFakeServer starts a listener on an ephemeral port and accepts a
// single connection in the background.
//
// Postcondition: Returns a running FakeServer; Addr() is dialable.
func NewFakeServer(t *testing.T) *FakeServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting fake server: %v", err)
	}

	s := &FakeServer{
		t:        t,
		listener: listener,
		accepted: make(chan struct{}),
	}

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.reader = bufio.NewReader(conn)
		s.mu.Unlock()
		close(s.accepted)
	}()

	t.Cleanup(s.Close)
	return s
}

// Addr returns the listener's address.
func (s *FakeServer) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listener's host part.
func (s *FakeServer) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listener's port number.
func (s *FakeServer) Port() int {
	addr := s.listener.Addr().(*net.TCPAddr)
	return addr.Port
}

// WaitConn blocks until the relay has connected or the timeout expires.
func (s *FakeServer) WaitConn(timeout time.Duration) {
	s.t.Helper()
	select {
	case <-s.accepted:
	case <-time.After(timeout):
		s.t.Fatalf("relay did not connect within %s", timeout)
	}
}

// Send pushes raw bytes down the accepted connection.
//
// Precondition: WaitConn must have returned.
func (s *FakeServer) Send(data string) {
	s.t.Helper()
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatal("no accepted connection")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(data)); err != nil {
		s.t.Fatalf("sending %q: %v", data, err)
	}
}

// ReadLine returns the next line the relay forwarded upstream, with the
// trailing newline trimmed.
//
// Precondition: WaitConn must have returned.
func (s *FakeServer) ReadLine(timeout time.Duration) string {
	s.t.Helper()
	s.mu.Lock()
	conn, reader := s.conn, s.reader
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatal("no accepted connection")
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := reader.ReadString('\n')
	if err != nil {
		s.t.Fatalf("reading upstream line: got %q, error: %v", line, err)
	}
	return strings.TrimRight(line, "\r\n")
}

// Close shuts down the listener and any accepted connection.
func (s *FakeServer) Close() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
