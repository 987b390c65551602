// Package arbiter polls live key state and derives the net click-through
// state for every tracked window.
//
// Two independent signals feed it: a held modifier key enabling transient
// passthrough on all tracked windows, and a toggle key flipping persistent
// (locked) passthrough on the selected window. Lock overrides transient:
// the held key never changes a locked window, and unlocking falls back to
// whatever the held key currently dictates.
package arbiter

import (
	"context"
	"sync"
	"time"

	"veil/internal/engine"
	"veil/internal/logging"
	"veil/internal/winapi"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 55 * time.Millisecond

// Config holds the arbiter's key bindings and poll cadence.
type Config struct {
	// Interval between key-state polls.
	Interval time.Duration

	// ModifierKeys are the virtual keys whose logical OR is the "held"
	// signal for transient passthrough.
	ModifierKeys []uint16

	// ToggleKey flips locked passthrough on the selected window, on its
	// rising edge.
	ToggleKey uint16
}

// Arbiter runs the cooperative poll loop.
type Arbiter struct {
	backend winapi.Backend
	eng     *engine.Engine
	log     *logging.Logger

	mu         sync.Mutex
	cfg        Config
	held       bool
	togglePrev bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an arbiter. Zero-value config fields fall back to defaults.
func New(backend winapi.Backend, eng *engine.Engine, cfg Config, log *logging.Logger) *Arbiter {
	if log == nil {
		log = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.ModifierKeys) == 0 {
		cfg.ModifierKeys = []uint16{winapi.VKControl, winapi.VKLControl, winapi.VKRControl}
	}
	if cfg.ToggleKey == 0 {
		cfg.ToggleKey = winapi.VKOEM3
	}
	return &Arbiter{
		backend: backend,
		eng:     eng,
		log:     log.WithComponent("arbiter"),
		cfg:     cfg,
	}
}

// Start begins polling until the context is canceled or Stop is called.
func (a *Arbiter) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return // already running
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.loop(ctx)
}

// Stop halts polling and waits for the loop to exit.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Reconfigure swaps key bindings and cadence; takes effect on the next tick.
func (a *Arbiter) Reconfigure(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.Interval > 0 {
		a.cfg.Interval = cfg.Interval
	}
	if len(cfg.ModifierKeys) > 0 {
		a.cfg.ModifierKeys = cfg.ModifierKeys
	}
	if cfg.ToggleKey != 0 {
		a.cfg.ToggleKey = cfg.ToggleKey
	}
}

// Held reports the current modifier-held state, for status readouts.
func (a *Arbiter) Held() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.held
}

func (a *Arbiter) loop(ctx context.Context) {
	defer close(a.done)

	timer := time.NewTimer(a.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			a.poll()
			timer.Reset(a.interval())
		}
	}
}

func (a *Arbiter) interval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Interval
}

// poll reads both key signals once and acts on edges only: reapplying state
// on every tick would hammer the OS and churn the UI for no reason.
func (a *Arbiter) poll() {
	a.mu.Lock()
	modifiers := a.cfg.ModifierKeys
	toggle := a.cfg.ToggleKey
	prevHeld := a.held
	prevToggle := a.togglePrev
	a.mu.Unlock()

	held := a.backend.KeyHeld(modifiers...)
	if held != prevHeld {
		a.mu.Lock()
		a.held = held
		a.mu.Unlock()
		a.applyTransient(held)
	}

	toggleDown := a.backend.KeyHeld(toggle)
	if toggleDown && !prevToggle {
		a.toggleSelected(held)
	}
	a.mu.Lock()
	a.togglePrev = toggleDown
	a.mu.Unlock()
}

// applyTransient flips passthrough on every tracked window that is not
// locked. Locked windows are the lock toggle's business alone.
func (a *Arbiter) applyTransient(enable bool) {
	for _, h := range a.eng.UnlockedHandles() {
		if err := a.eng.SetClickThrough(h, enable, false); err != nil {
			a.log.Debug("transient passthrough apply failed", "handle", h, "enable", enable, "error", err)
		}
	}
	a.log.Debug("transient passthrough", "enabled", enable)
}

// toggleSelected handles a rising edge of the toggle key against the
// currently selected window. Unlocking does not unconditionally disable
// click-through: the resulting state falls back to the held-key signal.
func (a *Arbiter) toggleSelected(held bool) {
	sel := a.eng.Selected()
	if sel == 0 {
		a.log.Debug("toggle ignored, no selection")
		return
	}

	locked := false
	if v, ok := a.eng.Record(sel); ok {
		locked = v.Locked
	}

	var err error
	if locked {
		err = a.eng.SetClickThrough(sel, held, false)
	} else {
		err = a.eng.SetClickThrough(sel, true, true)
	}
	if err != nil {
		a.log.Warn("lock toggle failed", "handle", sel, "error", err)
		return
	}
	a.log.Info("lock toggled", "handle", sel, "locked", !locked)
}
