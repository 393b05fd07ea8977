// Package server ties the relay to the process lifetime: the accept loop
// runs in the foreground until a termination signal, a service failure, or
// context cancellation, then shutdown hooks run in reverse order.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is the foreground component the process exists to run. Start
// blocks until the service ends or Stop is called; Stop must be safe to
// call concurrently with Start.
type Service interface {
	Start() error
	Stop()
}

// Proc wraps one foreground service and the hooks that must run after it
// has stopped, such as persisting the map.
type Proc struct {
	name   string
	svc    Service
	logger *zap.Logger
	hooks  []hook
}

type hook struct {
	name string
	fn   func() error
}

// NewProc creates a process wrapper around the given service.
//
// Precondition: name must be non-empty; svc and logger must be non-nil.
func NewProc(name string, svc Service, logger *zap.Logger) *Proc {
	return &Proc{
		name:   name,
		svc:    svc,
		logger: logger,
	}
}

// OnShutdown registers a hook to run after the service has stopped. Hooks
// run in reverse registration order; a failing hook is logged and does not
// stop the others.
//
// Precondition: Must be called before Run.
func (p *Proc) OnShutdown(name string, fn func() error) {
	p.hooks = append(p.hooks, hook{name: name, fn: fn})
}

// Run starts the service and blocks until it ends on its own, a termination
// signal arrives (SIGINT or SIGTERM), or ctx is cancelled. The shutdown
// hooks run in every case.
//
// Postcondition: The service is stopped and every hook has run when this
// method returns; the returned error is the service's, if any.
func (p *Proc) Run(ctx context.Context) error {
	start := time.Now()

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("starting service", zap.String("service", p.name))
		errCh <- p.svc.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ended := false
	var svcErr error
	select {
	case sig := <-sigCh:
		p.logger.Info("received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case <-ctx.Done():
		p.logger.Info("context cancelled, shutting down")
	case svcErr = <-errCh:
		ended = true
	}

	p.svc.Stop()
	if !ended {
		svcErr = <-errCh
	}
	if svcErr != nil {
		p.logger.Error("service failed",
			zap.String("service", p.name),
			zap.Error(svcErr),
		)
		svcErr = fmt.Errorf("service %s: %w", p.name, svcErr)
	}

	for i := len(p.hooks) - 1; i >= 0; i-- {
		h := p.hooks[i]
		if err := h.fn(); err != nil {
			p.logger.Error("shutdown hook failed",
				zap.String("hook", h.name),
				zap.Error(err),
			)
			continue
		}
		p.logger.Info("shutdown hook complete", zap.String("hook", h.name))
	}

	p.logger.Info("shutdown complete",
		zap.Duration("uptime", time.Since(start)),
	)
	return svcErr
}
