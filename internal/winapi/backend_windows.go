//go:build windows

package winapi

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Win32 constants beyond the shared style bits.
const (
	gwlExStyle = -20

	lwaAlpha = 0x0002

	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpNoActivate = 0x0010

	gaRoot = 2

	keyDownBit = 0x8000
)

var (
	hwndTopmost   = ^uintptr(0)     // (HWND)-1
	hwndNoTopmost = ^uintptr(0) - 1 // (HWND)-2
)

var (
	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	procSetLastError = kernel32.NewProc("SetLastError")

	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumWindows                = user32.NewProc("EnumWindows")
	procIsWindow                   = user32.NewProc("IsWindow")
	procIsWindowVisible            = user32.NewProc("IsWindowVisible")
	procGetAncestor                = user32.NewProc("GetAncestor")
	procGetWindowTextLengthW       = user32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW             = user32.NewProc("GetWindowTextW")
	procGetClassNameW              = user32.NewProc("GetClassNameW")
	procGetWindowLongW             = user32.NewProc("GetWindowLongW")
	procSetWindowLongW             = user32.NewProc("SetWindowLongW")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procSetWindowPos               = user32.NewProc("SetWindowPos")
	procGetAsyncKeyState           = user32.NewProc("GetAsyncKeyState")
)

// windowsBackend drives user32 directly. All calls are best-effort and
// return typed errors the engine can classify.
type windowsBackend struct{}

func newPlatformBackend() Backend {
	return &windowsBackend{}
}

func (b *windowsBackend) Available() (bool, string) {
	return true, "user32 window attribute backend"
}

// enumCallback is created once: NewCallback slots are never released and
// Windows caps them per process. EnumWindows is synchronous, so passing the
// result slice through lparam is safe.
var enumCallback = windows.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
	wins := (*[]WindowInfo)(unsafe.Pointer(lparam))

	if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
		return 1 // continue
	}

	// Resolve child windows up to their top-level ancestor.
	if root, _, _ := procGetAncestor.Call(hwnd, gaRoot); root != 0 {
		hwnd = root
	}

	*wins = append(*wins, WindowInfo{
		Handle: Handle(hwnd),
		Title:  windowText(hwnd),
		Class:  className(hwnd),
	})
	return 1
})

func (b *windowsBackend) ListWindows() ([]WindowInfo, error) {
	var wins []WindowInfo
	ret, _, err := procEnumWindows.Call(enumCallback, uintptr(unsafe.Pointer(&wins)))
	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	return wins, nil
}

func windowText(hwnd uintptr) string {
	tlen, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if tlen == 0 {
		return ""
	}
	buf := make([]uint16, tlen+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func className(hwnd uintptr) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassNameW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func (b *windowsBackend) IsWindow(h Handle) bool {
	ret, _, _ := procIsWindow.Call(uintptr(h))
	return ret != 0
}

func (b *windowsBackend) ExStyle(h Handle) (uint32, error) {
	// GetWindowLong does not clear the last error on success, and a zero
	// extended style is legitimate, so a stale errno from an earlier call
	// must be cleared before the read. The error slot is per-thread, so
	// the clear and the read have to happen on the same one.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	procSetLastError.Call(0)
	style, _, err := procGetWindowLongW.Call(uintptr(h), indexArg(gwlExStyle))
	if style == 0 && err != windows.ERROR_SUCCESS {
		if !b.IsWindow(h) {
			return 0, ErrStaleWindow
		}
		return 0, fmt.Errorf("GetWindowLong: %w", ErrUnsupported)
	}
	return uint32(style), nil
}

func (b *windowsBackend) SetExStyle(h Handle, style uint32) error {
	// SetWindowLong returns the previous value, which may legitimately be
	// zero, so failure is only detected via the window going away.
	procSetWindowLongW.Call(uintptr(h), indexArg(gwlExStyle), uintptr(style))
	if !b.IsWindow(h) {
		return ErrStaleWindow
	}
	return nil
}

func (b *windowsBackend) SetAlpha(h Handle, alpha byte) error {
	ret, _, _ := procSetLayeredWindowAttributes.Call(uintptr(h), 0, uintptr(alpha), lwaAlpha)
	if ret == 0 {
		if !b.IsWindow(h) {
			return ErrStaleWindow
		}
		return fmt.Errorf("SetLayeredWindowAttributes: %w", ErrUnsupported)
	}
	return nil
}

func (b *windowsBackend) SetTopmost(h Handle, topmost bool) error {
	after := hwndNoTopmost
	if topmost {
		after = hwndTopmost
	}
	ret, _, _ := procSetWindowPos.Call(uintptr(h), after, 0, 0, 0, 0,
		swpNoMove|swpNoSize|swpNoActivate)
	if ret == 0 {
		if !b.IsWindow(h) {
			return ErrStaleWindow
		}
		return fmt.Errorf("SetWindowPos: %w", ErrUnsupported)
	}
	return nil
}

func (b *windowsBackend) KeyHeld(vks ...uint16) bool {
	for _, vk := range vks {
		state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
		if state&keyDownBit != 0 {
			return true
		}
	}
	return false
}

// indexArg converts a signed window-long index for a Call argument without
// sign-extending past 32 bits.
func indexArg(i int32) uintptr {
	return uintptr(uint32(i))
}
