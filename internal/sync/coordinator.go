// Package sync pushes profile changes to the configured upstream. Writes are
// debounced so bursts of edits collapse into a single send, and the last
// successfully synced payload is remembered so identical state is never sent
// twice.
package sync

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/pkg/errors"
)

// State is the coordinator's lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateSending   State = "sending"
	StateSuspended State = "suspended"
)

// DefaultDebounce is the settle time after the last Schedule call.
const DefaultDebounce = 400 * time.Millisecond

// Snapshot serialises the current profile state into a canonical payload.
// The serialisation must be deterministic for the skip-identical check.
type Snapshot func(ctx context.Context) ([]byte, error)

// Sender delivers a payload to the upstream.
type Sender func(ctx context.Context, payload []byte) error

// Coordinator debounces profile pushes. It is inert until a session is
// established and while Pause sections are active; Schedule calls arriving
// in either window are remembered and replayed once the gate opens.
type Coordinator struct {
	snapshot Snapshot
	send     Sender
	debounce time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	timer      *time.Timer
	pauseDepth int
	pending    bool
	session    bool
	lastSynced []byte
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the settle time.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator builds an idle coordinator. It stays inert until
// SetSession(true).
func NewCoordinator(snapshot Snapshot, send Sender, opts ...Option) *Coordinator {
	c := &Coordinator{
		snapshot: snapshot,
		send:     send,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetSession gates the coordinator. Ending the session cancels any pending
// send and forgets the last synced payload.
func (c *Coordinator) SetSession(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = active
	if !active {
		c.stopTimerLocked()
		c.pending = false
		c.lastSynced = nil
		c.state = StateIdle
	}
}

// Schedule requests a sync after the debounce window. Repeated calls within
// the window restart it, so a burst of edits produces one send.
func (c *Coordinator) Schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session {
		return
	}
	if c.pauseDepth > 0 {
		c.pending = true
		return
	}
	c.stopTimerLocked()
	c.state = StateScheduled
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

// Pause runs fn with syncing suspended. Nesting is allowed; sends scheduled
// inside the section run once the outermost Pause returns.
func (c *Coordinator) Pause(fn func()) {
	c.mu.Lock()
	c.pauseDepth++
	if c.timer != nil {
		c.stopTimerLocked()
		c.pending = true
	}
	c.state = StateSuspended
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pauseDepth--
		resume := c.pauseDepth == 0
		if resume {
			c.state = StateIdle
		}
		replay := resume && c.pending && c.session
		if replay {
			c.pending = false
		}
		c.mu.Unlock()
		if replay {
			c.Schedule()
		}
	}()
	fn()
}

// SyncNow serialises and sends immediately, bypassing the debounce. A payload
// identical to the last successful send is skipped without touching the
// network. On failure lastSynced is left unchanged so the next attempt
// retries the same state.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	c.mu.Lock()
	if !c.session {
		c.mu.Unlock()
		return nil
	}
	if c.pauseDepth > 0 {
		c.pending = true
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	c.state = StateSending
	c.mu.Unlock()

	err := c.syncOnce(ctx)

	c.mu.Lock()
	if c.state == StateSending {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return err
}

// Stop cancels any pending send.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.pending = false
	c.state = StateIdle
}

func (c *Coordinator) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.SyncNow(ctx); err != nil {
		c.logger.Warn("profile sync failed", zap.Error(err))
	}
}

func (c *Coordinator) syncOnce(ctx context.Context) error {
	payload, err := c.snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "serializing profile snapshot")
	}

	c.mu.Lock()
	skip := c.lastSynced != nil && bytes.Equal(c.lastSynced, payload)
	c.mu.Unlock()
	if skip {
		return nil
	}

	if err := c.send(ctx, payload); err != nil {
		return errors.Wrap(err, errors.ErrUpstream.Code, errors.ErrUpstream.Status, "pushing profile to sync upstream")
	}

	c.mu.Lock()
	c.lastSynced = payload
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
