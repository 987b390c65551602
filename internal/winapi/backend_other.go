//go:build !windows

package winapi

// stubBackend is used on platforms without a window-attribute implementation.
// Every call fails with ErrUnavailable so the engine degrades to an empty,
// untouched desktop instead of crashing.
type stubBackend struct{}

func newPlatformBackend() Backend {
	return &stubBackend{}
}

func (b *stubBackend) Available() (bool, string) {
	return false, "window attribute control is only implemented on Windows"
}

func (b *stubBackend) ListWindows() ([]WindowInfo, error) {
	return nil, ErrUnavailable
}

func (b *stubBackend) IsWindow(h Handle) bool {
	return false
}

func (b *stubBackend) ExStyle(h Handle) (uint32, error) {
	return 0, ErrUnavailable
}

func (b *stubBackend) SetExStyle(h Handle, style uint32) error {
	return ErrUnavailable
}

func (b *stubBackend) SetAlpha(h Handle, alpha byte) error {
	return ErrUnavailable
}

func (b *stubBackend) SetTopmost(h Handle, topmost bool) error {
	return ErrUnavailable
}

func (b *stubBackend) KeyHeld(vks ...uint16) bool {
	return false
}
