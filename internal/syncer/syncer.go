// Package syncer keeps the stored device document in step with the
// dashboard's state store. Edits are debounced, pushed one at a time
// through a Pusher, and the outcome is exposed as a small status machine
// for display.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/wufe/catears-dashboard/internal/clock"
	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/store"
	"github.com/wufe/catears-dashboard/internal/wire"
)

// ErrUnauthorized is returned by a Pusher when the session was rejected.
var ErrUnauthorized = errors.New("syncer: session rejected")

type Status string

const (
	StatusIdle         Status = "idle"
	StatusSyncing      Status = "syncing"
	StatusSuccess      Status = "success"
	StatusError        Status = "error"
	StatusAuthRequired Status = "auth_required"
)

const (
	DefaultDebounce       = 500 * time.Millisecond
	DefaultSuccessDisplay = 2 * time.Second
	DefaultErrorDisplay   = 3 * time.Second
	DefaultPushTimeout    = 10 * time.Second
)

// Receipt describes a committed write.
type Receipt struct {
	Timestamp time.Time
	Bucket    string
	File      string
}

// Pusher writes a device document to the remote store.
type Pusher interface {
	Push(ctx context.Context, doc []byte) (Receipt, error)
}

// State is a point in time view of the controller for display.
type State struct {
	Status       Status
	LastSyncTime time.Time
	LastReceipt  Receipt
	LastError    error
	Authorized   bool
	// Pending reports a debounce window that has not fired yet.
	Pending bool
}

type Config struct {
	Store  *store.Store
	Pusher Pusher
	Clock  clock.Clock
	Logger zerolog.Logger

	Debounce       time.Duration
	SuccessDisplay time.Duration
	ErrorDisplay   time.Duration
	PushTimeout    time.Duration

	// OnState is called after every status change.
	OnState func(State)
	// OnSynced is called with the configuration a successful push carried.
	OnSynced func(schema.Configuration, Receipt)
}

type Controller struct {
	cfg Config
	log zerolog.Logger

	authorized   *atomic.Bool
	stopped      *atomic.Bool
	lastSyncTime *atomic.Time

	mtx struct{ sync.Mutex }
	// guarded by mtx
	status      Status
	lastErr     error
	lastReceipt Receipt
	debounce    clock.Timer
	debounceSeq uint64
	revert      clock.Timer
	statusSeq   uint64

	// held for the duration of a push
	pushMtx struct{ sync.Mutex }
	// last document the server confirmed, guarded by pushMtx
	lastDoc []byte

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("syncer: store is required")
	}
	if cfg.Pusher == nil {
		return nil, errors.New("syncer: pusher is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SuccessDisplay <= 0 {
		cfg.SuccessDisplay = DefaultSuccessDisplay
	}
	if cfg.ErrorDisplay <= 0 {
		cfg.ErrorDisplay = DefaultErrorDisplay
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultPushTimeout
	}

	return &Controller{
		cfg:          cfg,
		log:          cfg.Logger.With().Str("component", "syncer").Logger(),
		authorized:   atomic.NewBool(false),
		stopped:      atomic.NewBool(false),
		lastSyncTime: atomic.NewTime(time.Time{}),
		status:       StatusIdle,
		ctx:          context.Background(),
		cancel:       func() {},
	}, nil
}

// Start subscribes to store changes. Pushes triggered by the debounce
// window run with ctx.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.unsubscribe = c.cfg.Store.OnChange(c.changed)
}

// Stop unsubscribes from the store and drops any pending window. A push
// already in flight is cancelled through the Start context.
func (c *Controller) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.mtx.Lock()
	c.stopDebounceLocked()
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
	c.mtx.Unlock()
	c.cancel()
}

func (c *Controller) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Status:       c.status,
		LastSyncTime: c.lastSyncTime.Load(),
		LastReceipt:  c.lastReceipt,
		LastError:    c.lastErr,
		Authorized:   c.authorized.Load(),
		Pending:      c.debounce != nil,
	}
}

// SetAuthorized records the result of a session check without pushing.
func (c *Controller) SetAuthorized(ok bool) {
	c.authorized.Store(ok)
	if ok {
		c.publish()
		return
	}
	c.mtx.Lock()
	c.stopDebounceLocked()
	c.mtx.Unlock()
	c.publish()
}

// LoggedIn marks the session as authorized and pushes the current state
// once, immediately.
func (c *Controller) LoggedIn(ctx context.Context) error {
	c.authorized.Store(true)
	c.mtx.Lock()
	c.stopDebounceLocked()
	c.mtx.Unlock()

	c.pushMtx.Lock()
	c.lastDoc = nil
	c.pushMtx.Unlock()
	return c.push(ctx)
}

// LoggedOut stops automatic pushes until the next login.
func (c *Controller) LoggedOut() {
	c.authorized.Store(false)
	c.mtx.Lock()
	c.stopDebounceLocked()
	c.mtx.Unlock()
	c.setStatus(StatusIdle, nil)
}

// SyncNow pushes the current state without waiting for the debounce window.
func (c *Controller) SyncNow(ctx context.Context) error {
	if !c.authorized.Load() {
		return ErrUnauthorized
	}
	c.mtx.Lock()
	c.stopDebounceLocked()
	c.mtx.Unlock()
	return c.push(ctx)
}

func (c *Controller) changed(schema.Configuration) {
	if c.stopped.Load() || !c.authorized.Load() {
		return
	}

	c.mtx.Lock()
	c.stopDebounceLocked()
	c.debounceSeq++
	seq := c.debounceSeq
	c.debounce = c.cfg.Clock.AfterFunc(c.cfg.Debounce, func() { c.fire(seq) })
	c.mtx.Unlock()
	c.publish()
}

func (c *Controller) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Controller) fire(seq uint64) {
	c.mtx.Lock()
	if seq != c.debounceSeq || c.debounce == nil {
		c.mtx.Unlock()
		return
	}
	c.debounce = nil
	c.mtx.Unlock()

	if c.stopped.Load() || !c.authorized.Load() {
		c.publish()
		return
	}
	if err := c.push(c.ctx); err != nil {
		c.log.Warn().Err(err).Msg("Sync failed")
	}
}

// push writes the store's current state. Only one push runs at a time; a
// caller arriving while another push is in flight waits for it and then
// sends whatever the store holds at that point, unless that is the document
// the server already confirmed.
func (c *Controller) push(ctx context.Context) error {
	c.pushMtx.Lock()
	defer c.pushMtx.Unlock()

	cfg := c.cfg.Store.Snapshot()
	doc, err := wire.Marshal(cfg)
	if err != nil {
		c.setStatus(StatusError, err)
		return fmt.Errorf("syncer: encoding state: %w", err)
	}
	if c.lastDoc != nil && bytes.Equal(doc, c.lastDoc) {
		c.log.Debug().Msg("State unchanged since last sync, skipping push")
		return nil
	}

	c.setStatus(StatusSyncing, nil)
	c.log.Debug().Int("bytes", len(doc)).Msg("Pushing state")

	pushCtx, cancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
	receipt, err := c.cfg.Pusher.Push(pushCtx, doc)
	cancel()

	switch {
	case errors.Is(err, ErrUnauthorized):
		c.authorized.Store(false)
		c.mtx.Lock()
		c.stopDebounceLocked()
		c.mtx.Unlock()
		c.lastDoc = nil
		c.setStatus(StatusAuthRequired, err)
		return err
	case err != nil:
		c.lastDoc = nil
		c.setStatus(StatusError, err)
		return fmt.Errorf("syncer: pushing state: %w", err)
	}

	c.lastDoc = doc
	c.lastSyncTime.Store(c.cfg.Clock.Now())
	c.mtx.Lock()
	c.lastReceipt = receipt
	c.mtx.Unlock()
	c.setStatus(StatusSuccess, nil)
	c.log.Info().Str("file", receipt.File).Msg("State synced")

	if c.cfg.OnSynced != nil {
		c.cfg.OnSynced(cfg, receipt)
	}
	return nil
}

// setStatus moves the status machine and arms the timer that returns the
// transient success and error states to idle.
func (c *Controller) setStatus(status Status, err error) {
	c.mtx.Lock()
	c.status = status
	c.lastErr = err
	c.statusSeq++
	seq := c.statusSeq
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}

	var display time.Duration
	switch status {
	case StatusSuccess:
		display = c.cfg.SuccessDisplay
	case StatusError:
		display = c.cfg.ErrorDisplay
	}
	if display > 0 && !c.stopped.Load() {
		c.revert = c.cfg.Clock.AfterFunc(display, func() { c.revertToIdle(seq) })
	}
	state := c.stateLocked()
	c.mtx.Unlock()

	c.notify(state)
}

func (c *Controller) revertToIdle(seq uint64) {
	c.mtx.Lock()
	if seq != c.statusSeq {
		c.mtx.Unlock()
		return
	}
	c.status = StatusIdle
	c.revert = nil
	state := c.stateLocked()
	c.mtx.Unlock()

	c.notify(state)
}

func (c *Controller) publish() {
	c.notify(c.State())
}

func (c *Controller) notify(state State) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(state)
	}
}
