package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/command"
	"github.com/mapward/mapward/internal/config"
	"github.com/mapward/mapward/internal/mapper"
	"github.com/mapward/mapward/internal/pathfind"
	"github.com/mapward/mapward/internal/stream"
)

const dialTimeout = 10 * time.Second

// Session relays one client connection to the game server. The server
// stream is forwarded verbatim while a copy feeds the segmenter and the
// synchronization engine; client lines starting with the command prefix
// are consumed by the dispatcher instead of relayed.
type Session struct {
	id     uuid.UUID
	cfg    config.Config
	store  *atlas.Store
	logger *zap.Logger

	client net.Conn
	inj    *injector

	mu     sync.Mutex
	server net.Conn
	closed bool

	wmu  sync.Mutex
	done chan struct{}
}

// NewSession creates a relay session for a connected client.
//
// Precondition: client must be open; cfg must be validated.
// Postcondition: Returns a Session ready to be driven by Run.
func NewSession(id uuid.UUID, client net.Conn, cfg config.Config, store *atlas.Store, logger *zap.Logger) *Session {
	return &Session{
		id:     id,
		cfg:    cfg,
		store:  store,
		logger: logger,
		client: client,
		inj:    newInjector(client, cfg.Proxy.WriteTimeout),
		done:   make(chan struct{}),
	}
}

// Done is closed when the session has fully shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run dials the upstream server and pumps both directions until either
// side disconnects. It blocks for the lifetime of the session.
//
// Postcondition: Both connections are closed when this method returns.
func (s *Session) Run() error {
	defer s.Close()

	server, err := s.dial()
	if err != nil {
		s.inj.Inject(fmt.Sprintf("[mapper] cannot reach %s: %v", s.cfg.Proxy.ServerAddr(), err))
		return fmt.Errorf("dialing upstream: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		server.Close()
		return nil
	}
	s.server = server
	s.mu.Unlock()

	mapSession := mapper.NewSession(s.store, s.cfg.Mapper, s.logger, s.inj.Inject)
	runner := pathfind.NewRunner(
		mapSession,
		func(dir atlas.Direction) error { return s.writeServer(string(dir) + "\r\n") },
		s.inj.Inject,
		s.cfg.Mapper.StepTimeout,
		s.logger,
	)
	defer runner.Stop()

	cmdCtx := &command.Context{
		Session:    mapSession,
		Runner:     runner,
		Store:      s.store,
		MapFile:    s.cfg.Mapper.MapFile,
		MaxResults: s.cfg.Mapper.MaxSearchResults,
		Reply:      s.inj.Inject,
		Logger:     s.logger,
	}
	registry := command.DefaultRegistry()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.pumpServer(mapSession)
	}()

	clientErr := s.pumpClient(registry, cmdCtx)
	s.Close()
	upErr := <-serverErr

	if isDisconnect(clientErr) {
		clientErr = nil
	}
	if isDisconnect(upErr) {
		upErr = nil
	}
	if clientErr != nil {
		return clientErr
	}
	return upErr
}

// dial connects to the game server, retrying with fibonacci backoff up
// to the configured attempt count.
func (s *Session) dial() (net.Conn, error) {
	backoff := retry.WithMaxRetries(
		uint64(s.cfg.Proxy.DialAttempts-1),
		retry.NewFibonacci(s.cfg.Proxy.DialBackoff),
	)

	var conn net.Conn
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		c, err := net.DialTimeout("tcp", s.cfg.Proxy.ServerAddr(), dialTimeout)
		if err != nil {
			s.logger.Warn("upstream dial failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// pumpClient reads client lines, consuming command-prefix lines and
// relaying everything else to the server unchanged.
func (s *Session) pumpClient(registry *command.Registry, cmdCtx *command.Context) error {
	prefix := s.cfg.Mapper.CommandPrefix
	reader := bufio.NewReader(s.client)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			body := strings.TrimSpace(line)
			if strings.HasPrefix(body, prefix) {
				s.dispatch(registry, cmdCtx, strings.TrimPrefix(body, prefix))
			} else if werr := s.writeServer(line); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(registry *command.Registry, cmdCtx *command.Context, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		s.inj.Inject("[mapper] command required, try help.")
		return
	}
	if !registry.Dispatch(cmdCtx, body) {
		verb := strings.Fields(body)[0]
		s.inj.Inject(fmt.Sprintf("[mapper] unknown command %q, try help.", verb))
	}
}

// pumpServer relays the server stream to the client and feeds a copy to
// the segmenter, applying each event to the synchronization engine.
func (s *Session) pumpServer(mapSession *mapper.Session) error {
	seg := stream.NewSegmenter()
	buf := make([]byte, 4096)

	for {
		n, err := s.server.Read(buf)
		if n > 0 {
			if werr := s.inj.Relay(buf[:n]); werr != nil {
				return werr
			}
			for _, ev := range seg.Feed(buf[:n]) {
				if pe, ok := ev.(stream.ParseError); ok {
					s.logger.Debug("stream parse error", zap.String("reason", pe.Reason))
					continue
				}
				mapSession.Apply(ev)
			}
		}
		if err != nil {
			return err
		}
	}
}

// writeServer sends raw text to the game server. Safe for concurrent use
// by the client pump and the plan runner.
func (s *Session) writeServer(text string) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return net.ErrClosed
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.cfg.Proxy.WriteTimeout > 0 {
		_ = server.SetWriteDeadline(time.Now().Add(s.cfg.Proxy.WriteTimeout))
	}
	_, err := io.WriteString(server, text)
	return err
}

// Close tears down both connections. Idempotent.
//
// Postcondition: Done() is closed and both legs are disconnected.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.client.Close()
	if s.server != nil {
		s.server.Close()
	}
	close(s.done)
}

func isDisconnect(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
