// Package proxy accepts client connections and relays them to the game
// server while feeding a copy of the server stream to the mapper.
package proxy

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/config"
)

// Acceptor listens for client connections on a TCP port and starts a
// relay session for each one. All sessions share one map store.
type Acceptor struct {
	cfg    config.Config
	store  *atlas.Store
	logger *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a relay acceptor with the given configuration.
//
// Precondition: cfg must be validated; store and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with Start.
func NewAcceptor(cfg config.Config, store *atlas.Store, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:    cfg,
		store:  store,
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// Start starts the TCP listener and accepts connections until Stop is
// called. It blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Proxy.ListenAddr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Proxy.ListenAddr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("proxy listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("server_addr", a.cfg.Proxy.ServerAddr()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.wg.Add(1)
		go a.handleConn(conn)
	}
}

// handleConn runs one relay session to completion.
func (a *Acceptor) handleConn(client net.Conn) {
	defer a.wg.Done()
	start := time.Now()

	id := uuid.New()
	logger := a.logger.With(
		zap.String("session_id", id.String()),
		zap.String("remote_addr", client.RemoteAddr().String()),
	)
	logger.Info("client connected")

	sess := NewSession(id, client, a.cfg, a.store, logger)
	go func() {
		select {
		case <-a.quit:
			sess.Close()
		case <-sess.Done():
		}
	}()

	if err := sess.Run(); err != nil {
		logger.Debug("session ended",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		logger.Info("session ended cleanly",
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Stop gracefully stops the acceptor, closing the listener and waiting
// for all active sessions to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	close(a.quit)
	if a.listener != nil {
		a.listener.Close()
	}
	a.wg.Wait()

	a.logger.Info("proxy stopped")
}

// Addr returns the actual listening address, or empty string if not yet
// listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
