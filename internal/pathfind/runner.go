package pathfind

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mapward/mapward/internal/atlas"
	"github.com/mapward/mapward/internal/mapper"
)

// Runner steps through a plan one direction at a time. After issuing a
// movement it suspends until the synchronization engine reports the next
// transition, a bounded timeout elapses, or the run is cancelled. It never
// issues the next movement before the prior one is confirmed, so slow server
// round-trips cannot cause overshoot.
type Runner struct {
	session *mapper.Session
	send    func(atlas.Direction) error
	output  func(line string)
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	running    bool
	lastTarget atlas.Vnum
	lastAvoid  AvoidSet
	hasLast    bool
}

// NewRunner creates a runner for one session.
//
// Precondition: session, send, and logger must be non-nil; timeout > 0.
func NewRunner(session *mapper.Session, send func(atlas.Direction) error, output func(line string), timeout time.Duration, logger *zap.Logger) *Runner {
	if output == nil {
		output = func(string) {}
	}
	return &Runner{
		session: session,
		send:    send,
		output:  output,
		timeout: timeout,
		logger:  logger,
	}
}

// Active reports whether a run is in progress.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start begins stepping through the plan in a background goroutine.
//
// Precondition: no run may already be active.
func (r *Runner) Start(plan *Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("a run is already active; stop it first")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	r.lastTarget = plan.Target
	r.lastAvoid = plan.Avoid
	r.hasLast = true

	go func() {
		defer func() {
			r.mu.Lock()
			r.running = false
			r.cancel = nil
			r.mu.Unlock()
		}()
		r.step(ctx, plan)
	}()
	return nil
}

// Continue computes a fresh plan from the current position to the previous
// run's target under the same constraints and starts it.
//
// Precondition: a previous run must exist; the session must be synced.
func (r *Runner) Continue() error {
	r.mu.Lock()
	if !r.hasLast {
		r.mu.Unlock()
		return fmt.Errorf("nothing to continue")
	}
	target, avoid := r.lastTarget, r.lastAvoid
	r.mu.Unlock()

	pos := r.session.Position()
	if pos.State != mapper.Synced {
		return ErrNotSynced
	}
	plan, err := Compute(r.session.Store(), pos.Room, target, avoid)
	if err != nil {
		return err
	}
	return r.Start(plan)
}

// Stop cancels the active run, if any.
//
// Postcondition: Returns true if a run was cancelled.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

// step walks the plan, reporting the outcome as synthesized output lines.
func (r *Runner) step(ctx context.Context, plan *Plan) {
	transitions, unsubscribe := r.session.Subscribe()
	defer unsubscribe()

	for {
		dir, expected, ok := plan.next()
		if !ok {
			if plan.Valid() {
				r.output(fmt.Sprintf("[mapper] arrived at vnum %d.", plan.Target))
			}
			return
		}

		if err := r.send(dir); err != nil {
			plan.stale = true
			r.logger.Error("sending movement", zap.String("dir", string(dir)), zap.Error(err))
			r.output("[mapper] run aborted: could not send movement.")
			return
		}

		arrived, err := r.await(ctx, transitions, expected)
		if err != nil {
			plan.stale = true
			switch {
			case errors.Is(err, context.Canceled):
				r.output("[mapper] run stopped.")
			case errors.Is(err, ErrStepTimeout):
				r.output("[mapper] run aborted: no movement confirmation.")
			case errors.Is(err, ErrDeviated):
				if arrived != atlas.Undefined {
					r.output(fmt.Sprintf("[mapper] deviated: expected vnum %d, at vnum %d. Use `run c` to continue or `stop`.", expected, arrived))
				} else {
					r.output("[mapper] deviated: position lost. Resync and `run c` to continue.")
				}
			}
			return
		}
		plan.cursor++
	}
}

// await blocks until the next movement-confirmed transition, the step
// timeout, or cancellation. It returns the room arrived at when the
// transition diverges from the expectation.
func (r *Runner) await(ctx context.Context, transitions <-chan mapper.Transition, expected atlas.Vnum) (atlas.Vnum, error) {
	deadline := time.NewTimer(r.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return atlas.Undefined, context.Canceled
		case <-deadline.C:
			return atlas.Undefined, ErrStepTimeout
		case tr := <-transitions:
			if !tr.Moved {
				continue
			}
			switch tr.To.State {
			case mapper.Synced:
				if tr.To.Room == expected {
					return expected, nil
				}
				return tr.To.Room, ErrDeviated
			case mapper.Unsynced:
				return atlas.Undefined, ErrDeviated
			case mapper.Tentative:
				// Ambiguity may still resolve to the expected room; keep
				// waiting within the step deadline.
				continue
			}
		}
	}
}
