// SPDX-License-Identifier: MIT

// Package booth is the single authoritative owner of camera, printer and
// session state. Commands from concurrent HTTP handlers are validated
// synchronously against the current state and either rejected with no side
// effect or executed on the one hardware lane; at most one hardware
// operation is ever in flight.
package booth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boothworks/boothd/internal/camera"
	"github.com/boothworks/boothd/internal/health"
	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/printer"
	"github.com/boothworks/boothd/internal/store"
)

// State is the controller state machine state.
type State string

const (
	StateIdle          State = "IDLE"
	StateReadyForPhoto State = "READY_FOR_PHOTO"
	StateCountdown     State = "COUNTDOWN"
	StateCapturing     State = "CAPTURING_PHOTO"
	StateProcessing    State = "PROCESSING"
	StatePrinting      State = "PRINTING"
)

var (
	// ErrSessionConflict is returned when a command is not valid in the
	// current state. The command has no side effect.
	ErrSessionConflict = errors.New("session conflict")
	// ErrInvalidRequest is returned for malformed commands, before any
	// state is touched.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConfigInvalid blocks all session starts until the configuration
	// is fixed; it is surfaced through health, not retried.
	ErrConfigInvalid = errors.New("configuration invalid")
)

// Failure describes the last session-cancelling error.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Settings are the tunable session-flow parameters. They can be swapped at
// runtime via UpdateSettings (config hot reload); the active session keeps
// the values it started with.
type Settings struct {
	CountdownSeconds int
	DefaultImages    int
	MaxPrintCount    int
	LogoPath         string
	AlbumInfoLine    string
	AlbumLinkLine    string
}

// StartRequest is the StartSession command payload.
type StartRequest struct {
	PrintCount int
	ImageCount int
}

// Status is a consistent snapshot of the published controller state.
// Readers never observe a half-applied transition.
type Status struct {
	State              State
	SessionID          string
	PhotosTaken        int
	TotalPhotos        int
	CountdownRemaining int
	Error              *Failure
}

// session is the in-memory unit of work for one guest group. It is
// ephemeral; the artifacts it produced outlive it on disk.
type session struct {
	id         string
	albumCode  string
	createdAt  time.Time
	imageCount int
	printCount int
	settings   Settings
	dirs       *store.Session
	photos     []string
}

// Deps are the collaborators the controller drives.
type Deps struct {
	Camera  camera.Gateway
	Printer printer.Spooler
	Store   *store.Store
	Ledger  *store.Ledger // optional
	Health  *health.Registry
}

// Controller is the session state machine plus command serializer.
type Controller struct {
	deps Deps

	// mu guards the session fields below. deviceMu serializes hardware
	// access; health probes acquire it with TryLock only, so a probe never
	// delays and never overlaps a capture.
	mu       sync.Mutex
	deviceMu sync.Mutex

	state   State
	sess    *session
	lastErr *Failure
	remain  int // countdown seconds left

	// settingsMu also guards configErr, which the config reload
	// subscriber rewrites at runtime.
	settingsMu sync.RWMutex
	settings   Settings
	configErr  error

	tick    time.Duration
	runCtx  context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithTick overrides the countdown tick duration (default one second).
// Primarily for tests.
func WithTick(d time.Duration) Option {
	return func(c *Controller) { c.tick = d }
}

// WithConfigError marks the configuration as invalid: every StartSession
// fails with ErrConfigInvalid until the daemon is reconfigured.
func WithConfigError(err error) Option {
	return func(c *Controller) { c.configErr = err }
}

// New creates an idle controller.
func New(deps Deps, settings Settings, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:     deps,
		state:    StateIdle,
		settings: settings,
		tick:     time.Second,
		runCtx:   ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.configErr != nil && deps.Health != nil {
		deps.Health.Set(health.Fault{
			Source:       health.SourceConfig,
			Level:        health.LevelError,
			Message:      c.configErr.Error(),
			Instructions: health.ConfigInstructions,
		})
	}
	return c
}

// Close stops the controller and waits for the active worker, if any, to
// finish its current hardware operation.
func (c *Controller) Close() {
	c.cancel()
	c.workers.Wait()
}

// UpdateSettings swaps the session-flow settings. Takes effect for the
// next accepted command; the active session is not disturbed.
func (c *Controller) UpdateSettings(s Settings) {
	c.settingsMu.Lock()
	c.settings = s
	c.settingsMu.Unlock()
}

func (c *Controller) currentSettings() Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// SetConfigError replaces the configuration validity state. A non-nil err
// blocks session starts and raises a config fault; nil re-enables starts
// and clears the fault. The config reload subscriber calls this after a
// successful reload so a fixed configuration takes effect without a
// restart.
func (c *Controller) SetConfigError(err error) {
	c.settingsMu.Lock()
	c.configErr = err
	c.settingsMu.Unlock()

	if c.deps.Health == nil {
		return
	}
	if err != nil {
		c.deps.Health.Set(health.Fault{
			Source:       health.SourceConfig,
			Level:        health.LevelError,
			Message:      err.Error(),
			Instructions: health.ConfigInstructions,
		})
		return
	}
	c.deps.Health.Clear(health.SourceConfig)
}

func (c *Controller) configError() error {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.configErr
}

// Status returns a consistent snapshot of the published state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	st := Status{
		State:              c.state,
		CountdownRemaining: c.remain,
		Error:              c.lastErr,
	}
	if c.sess != nil {
		st.SessionID = c.sess.id
		st.PhotosTaken = len(c.sess.photos)
		st.TotalPhotos = c.sess.imageCount
	} else {
		st.TotalPhotos = c.currentSettings().DefaultImages
	}
	return st
}

// TryExclusive implements health.Guard: fn runs with exclusive hardware
// access only when the controller is idle or waiting for a photo and no
// other hardware operation holds the device. It never blocks.
func (c *Controller) TryExclusive(fn func()) bool {
	c.mu.Lock()
	safe := c.state == StateIdle || c.state == StateReadyForPhoto
	c.mu.Unlock()
	if !safe {
		return false
	}
	if !c.deviceMu.TryLock() {
		return false
	}
	defer c.deviceMu.Unlock()
	fn()
	return true
}

// setStateLocked transitions the state machine and logs the edge.
// Callers must hold c.mu.
func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	logger := log.WithComponent("booth")
	logger.Debug().
		Str(log.FieldEvent, "state.transition").
		Str(log.FieldOldState, string(c.state)).
		Str(log.FieldNewState, string(next)).
		Msg("state transition")
	c.state = next
}

// albumCode derives the printed album code from the session ID.
func albumCode(id string) string {
	code := strings.ReplaceAll(id, "-", "")
	if len(code) > 8 {
		code = code[:8]
	}
	return strings.ToUpper(code)
}

// newSessionID returns a fresh opaque session identifier.
func newSessionID() string {
	return uuid.New().String()
}
