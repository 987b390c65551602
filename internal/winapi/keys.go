package winapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Virtual-key codes veil binds by default.
const (
	VKControl  uint16 = 0x11
	VKLControl uint16 = 0xA2
	VKRControl uint16 = 0xA3
	VKMenu     uint16 = 0x12 // Alt
	VKLMenu    uint16 = 0xA4
	VKRMenu    uint16 = 0xA5
	VKShift    uint16 = 0x10
	VKLShift   uint16 = 0xA0
	VKRShift   uint16 = 0xA1
	VKOEM3     uint16 = 0xC0 // backtick/tilde on US layouts
)

// ModifierKeys maps a modifier name to the virtual keys that count as "held".
// The generic code plus both left/right variants are polled together because
// GetAsyncKeyState reports them independently.
func ModifierKeys(name string) ([]uint16, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ctrl", "control":
		return []uint16{VKControl, VKLControl, VKRControl}, nil
	case "alt":
		return []uint16{VKMenu, VKLMenu, VKRMenu}, nil
	case "shift":
		return []uint16{VKShift, VKLShift, VKRShift}, nil
	default:
		return nil, fmt.Errorf("unknown modifier key %q (want ctrl, alt or shift)", name)
	}
}

// ToggleKey maps a toggle-key spec to a virtual-key code. Accepted forms:
// "backtick", a single letter or digit, or a hex VK code like "0xC0".
func ToggleKey(spec string) (uint16, error) {
	s := strings.TrimSpace(spec)
	switch strings.ToLower(s) {
	case "backtick", "grave", "`":
		return VKOEM3, nil
	}

	if strings.HasPrefix(strings.ToLower(s), "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid toggle key code %q: %w", spec, err)
		}
		return uint16(v), nil
	}

	if len(s) == 1 {
		c := s[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uint16(c - 'a' + 'A'), nil
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return uint16(c), nil
		}
	}

	return 0, fmt.Errorf("unknown toggle key %q", spec)
}
