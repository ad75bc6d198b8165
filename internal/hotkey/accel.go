package hotkey

import (
	"fmt"
	"strings"
)

// Modifier is a set of modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// Accelerator is a parsed hotkey such as "Ctrl+Shift+R".
type Accelerator struct {
	// Key is the canonical key name: "Space", "A".."Z", "0".."9", "F1".."F12",
	// "Return", "Tab" or "Escape".
	Key  string
	Mods Modifier
}

var modifierNames = map[string]Modifier{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

// ParseAccelerator parses "Mod+Mod+Key". Names are case-insensitive and the
// key must come last.
func ParseAccelerator(s string) (Accelerator, error) {
	parts := strings.Split(s, "+")
	var acc Accelerator
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q", s)
		}
		if i < len(parts)-1 {
			m, ok := modifierNames[strings.ToLower(p)]
			if !ok {
				return Accelerator{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			acc.Mods |= m
			continue
		}
		key, ok := canonicalKey(p)
		if !ok {
			return Accelerator{}, fmt.Errorf("unsupported key %q in %q", p, s)
		}
		acc.Key = key
	}
	return acc, nil
}

func (a Accelerator) String() string {
	var b strings.Builder
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModSuper, "Super"}} {
		if a.Mods&m.mod != 0 {
			b.WriteString(m.name)
			b.WriteByte('+')
		}
	}
	b.WriteString(a.Key)
	return b.String()
}

func canonicalKey(k string) (string, bool) {
	switch lower := strings.ToLower(k); lower {
	case "space":
		return "Space", true
	case "return", "enter":
		return "Return", true
	case "tab":
		return "Tab", true
	case "esc", "escape":
		return "Escape", true
	}
	if len(k) == 1 {
		c := strings.ToUpper(k)[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return string(c), true
		}
	}
	up := strings.ToUpper(k)
	if _, ok := carbonKeyCodes[up]; ok && up[0] == 'F' {
		return up, true
	}
	return "", false
}

// X11Keysym is the keysym name for XStringToKeysym.
func (a Accelerator) X11Keysym() string {
	switch a.Key {
	case "Space":
		return "space"
	case "Return", "Tab", "Escape":
		return a.Key
	}
	if len(a.Key) == 1 && a.Key[0] >= 'A' && a.Key[0] <= 'Z' {
		return strings.ToLower(a.Key)
	}
	return a.Key
}

// X11Mask is the modifier mask for XGrabKey.
func (a Accelerator) X11Mask() int {
	mask := 0
	if a.Mods&ModShift != 0 {
		mask |= 1 // ShiftMask
	}
	if a.Mods&ModCtrl != 0 {
		mask |= 4 // ControlMask
	}
	if a.Mods&ModAlt != 0 {
		mask |= 8 // Mod1Mask
	}
	if a.Mods&ModSuper != 0 {
		mask |= 64 // Mod4Mask
	}
	return mask
}

// carbonKeyCodes maps key names to macOS virtual key codes (ANSI layout).
var carbonKeyCodes = map[string]uint32{
	"A": 0x00, "S": 0x01, "D": 0x02, "F": 0x03, "H": 0x04, "G": 0x05, "Z": 0x06,
	"X": 0x07, "C": 0x08, "V": 0x09, "B": 0x0B, "Q": 0x0C, "W": 0x0D, "E": 0x0E,
	"R": 0x0F, "Y": 0x10, "T": 0x11, "1": 0x12, "2": 0x13, "3": 0x14, "4": 0x15,
	"6": 0x16, "5": 0x17, "9": 0x19, "7": 0x1A, "8": 0x1C, "0": 0x1D, "O": 0x1F,
	"U": 0x20, "I": 0x22, "P": 0x23, "L": 0x25, "J": 0x26, "K": 0x28, "N": 0x2D,
	"M": 0x2E,
	"Return": 0x24, "Tab": 0x30, "Space": 0x31, "Escape": 0x35,
	"F1": 0x7A, "F2": 0x78, "F3": 0x63, "F4": 0x76, "F5": 0x60, "F6": 0x61,
	"F7": 0x62, "F8": 0x64, "F9": 0x65, "F10": 0x6D, "F11": 0x67, "F12": 0x6F,
}

// CarbonKeyCode is the virtual key code for RegisterEventHotKey.
func (a Accelerator) CarbonKeyCode() (uint32, bool) {
	code, ok := carbonKeyCodes[a.Key]
	return code, ok
}

// CarbonModifiers is the modifier mask for RegisterEventHotKey.
func (a Accelerator) CarbonModifiers() uint32 {
	var mods uint32
	if a.Mods&ModSuper != 0 {
		mods |= 0x100 // cmdKey
	}
	if a.Mods&ModShift != 0 {
		mods |= 0x200 // shiftKey
	}
	if a.Mods&ModAlt != 0 {
		mods |= 0x800 // optionKey
	}
	if a.Mods&ModCtrl != 0 {
		mods |= 0x1000 // controlKey
	}
	return mods
}
