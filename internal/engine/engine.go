// Package engine tracks per-window modification state and applies opacity,
// topmost and click-through attributes through a winapi.Backend.
//
// The engine is the single source of truth for "is this window currently
// modified and how". Every window it touches gets a modification record
// holding the original extended style bits, and restoring a window reapplies
// those bits verbatim and deletes the record. The restoration guard drains
// the store through RestoreAll on every exit path.
package engine

import (
	"fmt"
	"sync"

	"veil/internal/logging"
	"veil/internal/winapi"
)

// PlaceholderTitle is reported for windows with an empty title so the front
// end never renders a blank row.
const PlaceholderTitle = "<no title>"

// Record is the tracked modification state of one window.
type Record struct {
	// OriginalStyle is the extended style captured at first modification.
	// Restoration reapplies this value verbatim; it is never overwritten
	// while the record exists.
	OriginalStyle uint32

	// Alpha is the last-applied opacity, 0 (transparent) to 255 (opaque).
	Alpha byte

	// Transparent is the current effective click-through state.
	Transparent bool

	// Topmost records whether this engine forced the window topmost.
	Topmost bool

	// Locked means click-through persists independent of the held key.
	Locked bool
}

// View is the read-only record readout handed to the front end.
type View struct {
	Handle       winapi.Handle `json:"handle" yaml:"handle"`
	AlphaPercent int           `json:"alpha_percent" yaml:"alpha_percent"`
	Alpha        byte          `json:"alpha" yaml:"alpha"`
	Transparent  bool          `json:"transparent" yaml:"transparent"`
	Topmost      bool          `json:"topmost" yaml:"topmost"`
	Locked       bool          `json:"locked" yaml:"locked"`
}

// Engine owns the window state store and the attribute controller.
type Engine struct {
	mu       sync.Mutex
	backend  winapi.Backend
	log      *logging.Logger
	records  map[winapi.Handle]*Record
	selected winapi.Handle
}

// New creates an engine over the given backend.
func New(backend winapi.Backend, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default()
	}
	return &Engine{
		backend: backend,
		log:     log.WithComponent("engine"),
		records: make(map[winapi.Handle]*Record),
	}
}

// ListWindows returns the currently visible top-level windows, freshly
// enumerated, deduplicated by handle, with empty titles replaced by a
// placeholder. Enumeration failure yields an empty list, never an error:
// the front end must still render a usable list.
func (e *Engine) ListWindows() []winapi.WindowInfo {
	wins, err := e.backend.ListWindows()
	if err != nil {
		e.log.Warn("window enumeration failed", "error", err)
		return nil
	}

	seen := make(map[winapi.Handle]bool, len(wins))
	out := make([]winapi.WindowInfo, 0, len(wins))
	for _, w := range wins {
		if seen[w.Handle] {
			continue
		}
		seen[w.Handle] = true
		if w.Title == "" {
			w.Title = PlaceholderTitle
		}
		out = append(out, w)
	}
	return out
}

// SetOpacity applies the given opacity percent (0..100) to the window,
// creating a modification record on first touch, and forces the window
// topmost best-effort. The window becomes the current selection.
//
// The returned error reports only the opacity application itself; a failed
// topmost force is recorded in the record and logged. The record is created
// and retained even when the apply fails so the caller can retry or restore.
func (e *Engine) SetOpacity(h winapi.Handle, percent int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.ensureRecord(h)
	if err != nil {
		return err
	}
	e.selected = h

	alpha := AlphaFromPercent(percent)

	// The layered bit must be set before alpha has any effect. Idempotent.
	if style, serr := e.backend.ExStyle(h); serr == nil && style&winapi.StyleLayered == 0 {
		if serr = e.backend.SetExStyle(h, style|winapi.StyleLayered); serr != nil {
			e.log.Warn("layered style apply failed", "handle", h, "error", serr)
		}
	}

	applyErr := e.backend.SetAlpha(h, alpha)
	rec.Alpha = alpha
	if applyErr != nil {
		e.log.Warn("alpha apply failed", "handle", h, "alpha", alpha, "error", applyErr)
	}

	// Topmost is best-effort and never fails the operation.
	if terr := e.backend.SetTopmost(h, true); terr != nil {
		rec.Topmost = false
		e.log.Debug("topmost force failed", "handle", h, "error", terr)
	} else {
		rec.Topmost = true
	}

	if applyErr != nil {
		return fmt.Errorf("set opacity %d%% on %v: %w", percent, h, applyErr)
	}
	return nil
}

// SetClickThrough enables or disables mouse passthrough on the window and
// stores the requested lock state. A record is created on first touch.
//
// After any style-bit change the last known alpha is reasserted, because
// style mutations can silently reset the layered alpha association. Record
// fields reflecting the request are updated even when the underlying call
// fails, so a state readout shows the intent.
func (e *Engine) SetClickThrough(h winapi.Handle, enable, lock bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.ensureRecord(h)
	if err != nil {
		return err
	}

	rec.Transparent = enable
	rec.Locked = lock

	style, serr := e.backend.ExStyle(h)
	if serr != nil {
		return fmt.Errorf("read style of %v: %w", h, serr)
	}

	var want uint32
	if enable {
		if style&winapi.StyleTransparent != 0 {
			return nil // already enabled
		}
		want = style | winapi.StyleTransparent
	} else {
		if style&winapi.StyleTransparent == 0 {
			return nil // already disabled
		}
		want = style &^ winapi.StyleTransparent
	}

	if serr = e.backend.SetExStyle(h, want); serr != nil {
		return fmt.Errorf("set click-through=%v on %v: %w", enable, h, serr)
	}

	if aerr := e.backend.SetAlpha(h, rec.Alpha); aerr != nil {
		e.log.Debug("alpha reassert failed", "handle", h, "error", aerr)
	}
	return nil
}

// RemoveTopmost returns the window to the normal stacking order without
// touching its record. Best-effort.
func (e *Engine) RemoveTopmost(h winapi.Handle) error {
	if err := e.backend.SetTopmost(h, false); err != nil {
		return fmt.Errorf("remove topmost from %v: %w", h, err)
	}
	return nil
}

// Restore reverts the window to the state captured at first modification and
// deletes its record. Calling Restore on an untracked handle is a no-op, not
// an error: shutdown-time restoration may race with user-triggered
// restoration. The record is deleted even when the window is already gone,
// so stale entries cannot pin the store.
func (e *Engine) Restore(h winapi.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restoreLocked(h)
}

func (e *Engine) restoreLocked(h winapi.Handle) {
	rec, ok := e.records[h]
	if !ok {
		return
	}

	if err := e.backend.SetAlpha(h, 255); err != nil {
		e.log.Debug("restore alpha failed", "handle", h, "error", err)
	}
	if err := e.backend.SetExStyle(h, rec.OriginalStyle); err != nil {
		e.log.Debug("restore style failed", "handle", h, "error", err)
	}
	if err := e.backend.SetTopmost(h, false); err != nil {
		e.log.Debug("restore topmost failed", "handle", h, "error", err)
	}

	delete(e.records, h)
	if e.selected == h {
		e.selected = 0
	}
	e.log.Info("window restored", "handle", h)
}

// RestoreAll restores every tracked window. Safe to call repeatedly, from
// multiple trigger points, and with an empty store. Iteration runs over a
// snapshot of handles so entries may come and go during the sweep.
func (e *Engine) RestoreAll() {
	e.mu.Lock()
	handles := make([]winapi.Handle, 0, len(e.records))
	for h := range e.records {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		e.Restore(h)
	}
}

// Select makes the window the target of the lock toggle. The handle must
// refer to a live window.
func (e *Engine) Select(h winapi.Handle) error {
	if !e.backend.IsWindow(h) {
		return fmt.Errorf("select %v: %w", h, winapi.ErrStaleWindow)
	}
	e.mu.Lock()
	e.selected = h
	e.mu.Unlock()
	return nil
}

// Selected returns the current lock-toggle target, zero when none.
func (e *Engine) Selected() winapi.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Record returns the readout for a tracked window.
func (e *Engine) Record(h winapi.Handle) (View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[h]
	if !ok {
		return View{}, false
	}
	return viewOf(h, rec), true
}

// Records returns readouts for every tracked window.
func (e *Engine) Records() []View {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]View, 0, len(e.records))
	for h, rec := range e.records {
		views = append(views, viewOf(h, rec))
	}
	return views
}

// UnlockedHandles returns a snapshot of tracked handles whose passthrough is
// not locked. The arbiter flips these on modifier-key edges.
func (e *Engine) UnlockedHandles() []winapi.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	handles := make([]winapi.Handle, 0, len(e.records))
	for h, rec := range e.records {
		if !rec.Locked {
			handles = append(handles, h)
		}
	}
	return handles
}

// Tracked returns the number of tracked windows.
func (e *Engine) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// ensureRecord returns the record for h, capturing the original style bits
// on first modification. Called with e.mu held.
func (e *Engine) ensureRecord(h winapi.Handle) (*Record, error) {
	if rec, ok := e.records[h]; ok {
		return rec, nil
	}

	if !e.backend.IsWindow(h) {
		return nil, fmt.Errorf("window %v: %w", h, winapi.ErrStaleWindow)
	}

	style, err := e.backend.ExStyle(h)
	if err != nil {
		return nil, fmt.Errorf("capture style of %v: %w", h, err)
	}

	rec := &Record{OriginalStyle: style, Alpha: 255}
	e.records[h] = rec
	e.log.Debug("tracking window", "handle", h, "style", style)
	return rec, nil
}

func viewOf(h winapi.Handle, rec *Record) View {
	return View{
		Handle:       h,
		AlphaPercent: PercentFromAlpha(rec.Alpha),
		Alpha:        rec.Alpha,
		Transparent:  rec.Transparent,
		Topmost:      rec.Topmost,
		Locked:       rec.Locked,
	}
}

// AlphaFromPercent converts an opacity percent (clamped to 0..100) to the
// 0..255 alpha domain with truncating integer scaling.
func AlphaFromPercent(percent int) byte {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return byte(percent * 255 / 100)
}

// PercentFromAlpha converts a 0..255 alpha back to a display percent.
func PercentFromAlpha(alpha byte) int {
	return int(alpha) * 100 / 255
}
