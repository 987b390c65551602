package winapi

import (
	"fmt"
	"sync"
)

// FakeWindow is the state of one window inside the fake backend.
type FakeWindow struct {
	Title   string
	Class   string
	Style   uint32
	Alpha   byte
	Topmost bool
}

// Fake is an in-memory Backend for tests. It models live windows, their
// style bits and alpha, and instantaneous key state, and can be told to
// refuse calls the way protected windows do.
type Fake struct {
	mu sync.Mutex

	windows map[Handle]*FakeWindow
	order   []Handle
	keys    map[uint16]bool

	// RefuseAlpha and RefuseStyle make the corresponding calls fail with
	// ErrUnsupported, mimicking window classes that ignore layered
	// attributes.
	RefuseAlpha map[Handle]bool
	RefuseStyle map[Handle]bool

	// FailEnum makes ListWindows return an error.
	FailEnum bool

	// AlphaCalls records every SetAlpha application in order, so tests can
	// assert that alpha is reasserted after style mutations.
	AlphaCalls []struct {
		Handle Handle
		Alpha  byte
	}
}

// NewFake returns an empty fake backend.
func NewFake() *Fake {
	return &Fake{
		windows:     make(map[Handle]*FakeWindow),
		keys:        make(map[uint16]bool),
		RefuseAlpha: make(map[Handle]bool),
		RefuseStyle: make(map[Handle]bool),
	}
}

// AddWindow registers a live window with the given initial style bits.
func (f *Fake) AddWindow(h Handle, title, class string, style uint32) *FakeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := &FakeWindow{Title: title, Class: class, Style: style, Alpha: 255}
	f.windows[h] = w
	f.order = append(f.order, h)
	return w
}

// CloseWindow makes the handle stale, as if the user closed the window.
func (f *Fake) CloseWindow(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, h)
}

// Window returns the fake window state for assertions.
func (f *Fake) Window(h Handle) *FakeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[h]
}

// SetKey sets the instantaneous pressed state of a virtual key.
func (f *Fake) SetKey(vk uint16, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[vk] = down
}

func (f *Fake) Available() (bool, string) {
	return true, "fake backend"
}

func (f *Fake) ListWindows() ([]WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailEnum {
		return nil, fmt.Errorf("enumeration failed: %w", ErrUnsupported)
	}

	var wins []WindowInfo
	for _, h := range f.order {
		w, ok := f.windows[h]
		if !ok {
			continue
		}
		wins = append(wins, WindowInfo{Handle: h, Title: w.Title, Class: w.Class})
	}
	return wins, nil
}

func (f *Fake) IsWindow(h Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.windows[h]
	return ok
}

func (f *Fake) ExStyle(h Handle) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[h]
	if !ok {
		return 0, ErrStaleWindow
	}
	return w.Style, nil
}

func (f *Fake) SetExStyle(h Handle, style uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[h]
	if !ok {
		return ErrStaleWindow
	}
	if f.RefuseStyle[h] {
		return fmt.Errorf("set style: %w", ErrUnsupported)
	}
	w.Style = style
	return nil
}

func (f *Fake) SetAlpha(h Handle, alpha byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[h]
	if !ok {
		return ErrStaleWindow
	}
	if f.RefuseAlpha[h] {
		return fmt.Errorf("set alpha: %w", ErrUnsupported)
	}
	w.Alpha = alpha
	f.AlphaCalls = append(f.AlphaCalls, struct {
		Handle Handle
		Alpha  byte
	}{h, alpha})
	return nil
}

func (f *Fake) SetTopmost(h Handle, topmost bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[h]
	if !ok {
		return ErrStaleWindow
	}
	w.Topmost = topmost
	return nil
}

func (f *Fake) KeyHeld(vks ...uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, vk := range vks {
		if f.keys[vk] {
			return true
		}
	}
	return false
}
