// Package winapi abstracts the window-attribute and key-state calls veil
// needs from the host OS.
//
// The Backend interface is the single seam between the engine and the
// operating system: the real implementation wraps user32 on Windows, other
// platforms get a stub that reports itself unavailable, and tests substitute
// an in-memory fake.
package winapi

import "errors"

// Handle identifies a top-level window. It is opaque, owned by the OS, and
// becomes invalid once the window closes.
type Handle uintptr

// WindowInfo describes one visible top-level window.
type WindowInfo struct {
	Handle Handle `json:"handle" yaml:"handle"`
	Title  string `json:"title" yaml:"title"`
	Class  string `json:"class" yaml:"class"`
}

// Extended style bits used by veil. Values are the Win32 WS_EX_* constants;
// the stub and fake backends reuse them so style arithmetic is testable
// everywhere.
const (
	StyleLayered     uint32 = 0x00080000 // WS_EX_LAYERED
	StyleTransparent uint32 = 0x00000020 // WS_EX_TRANSPARENT
)

// Typed failures per the engine's error taxonomy. Callers classify with
// errors.Is and degrade to "nothing changed" for that one window.
var (
	// ErrStaleWindow means the target window no longer exists.
	ErrStaleWindow = errors.New("window no longer exists")

	// ErrUnsupported means the OS refused the style or alpha change, which
	// some protected window classes do.
	ErrUnsupported = errors.New("window rejected attribute change")

	// ErrUnavailable means this platform has no window-attribute backend.
	ErrUnavailable = errors.New("window attribute backend not available on this platform")
)

// Backend is the OS facade. Every call returns promptly; none retries.
type Backend interface {
	// Available reports whether the backend can talk to a window system,
	// with a human-readable reason when it cannot.
	Available() (bool, string)

	// ListWindows returns the currently visible top-level windows, child
	// windows resolved to their top-level ancestor. The result may contain
	// duplicate handles; deduplication is the enumerator's concern.
	ListWindows() ([]WindowInfo, error)

	// IsWindow reports whether the handle still refers to a live window.
	IsWindow(h Handle) bool

	// ExStyle reads the window's extended style bits.
	ExStyle(h Handle) (uint32, error)

	// SetExStyle replaces the window's extended style bits.
	SetExStyle(h Handle, style uint32) error

	// SetAlpha applies a uniform layered alpha (0 transparent, 255 opaque).
	// The layered style bit must already be set for the alpha to stick.
	SetAlpha(h Handle, alpha byte) error

	// SetTopmost moves the window above the normal stacking order, or back
	// into it.
	SetTopmost(h Handle, topmost bool) error

	// KeyHeld reports whether any of the given virtual keys is physically
	// pressed right now.
	KeyHeld(vks ...uint16) bool
}

// New returns the backend for the current platform.
func New() Backend {
	return newPlatformBackend()
}
