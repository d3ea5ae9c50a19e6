package action

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Shortcut parse errors.
var (
	ErrEmptyShortcut   = errors.New("empty shortcut")
	ErrInvalidShortcut = errors.New("invalid shortcut")
)

// Modifier is a bit set of shortcut modifier keys.
type Modifier uint8

// Modifier bits.
const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModMeta
)

// Has reports whether the modifier bit is set.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// Shortcut is a parsed key binding.
type Shortcut struct {
	Mods Modifier
	// Key is the normalized key name: a single upper-case character
	// ("R", "7") or a named key ("F5", "Enter", "Delete").
	Key string
}

// namedKeys are the non-character keys a shortcut may bind.
var namedKeys = map[string]string{
	"enter": "Enter", "return": "Enter",
	"tab":       "Tab",
	"space":     "Space",
	"escape":    "Escape",
	"esc":       "Escape",
	"delete":    "Delete",
	"del":       "Delete",
	"backspace": "Backspace",
	"insert":    "Insert",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"f1":        "F1", "f2": "F2", "f3": "F3", "f4": "F4",
	"f5": "F5", "f6": "F6", "f7": "F7", "f8": "F8",
	"f9": "F9", "f10": "F10", "f11": "F11", "f12": "F12",
}

// ParseShortcut parses a shortcut specification like "Ctrl-Shift-R",
// "Alt+F4" or "F5". Both "-" and "+" separate parts; the final part is
// the key, everything before it a modifier.
func ParseShortcut(spec string) (Shortcut, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Shortcut{}, ErrEmptyShortcut
	}

	parts := strings.FieldsFunc(spec, func(r rune) bool {
		return r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return Shortcut{}, fmt.Errorf("%w: %q", ErrInvalidShortcut, spec)
	}

	var sc Shortcut
	for _, part := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "ctrl", "control":
			sc.Mods |= ModCtrl
		case "alt", "option":
			sc.Mods |= ModAlt
		case "shift":
			sc.Mods |= ModShift
		case "meta", "cmd", "command":
			sc.Mods |= ModMeta
		default:
			return Shortcut{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidShortcut, part, spec)
		}
	}

	keyPart := strings.TrimSpace(parts[len(parts)-1])
	switch {
	case len([]rune(keyPart)) == 1:
		r := []rune(keyPart)[0]
		if !unicode.IsPrint(r) {
			return Shortcut{}, fmt.Errorf("%w: unprintable key in %q", ErrInvalidShortcut, spec)
		}
		sc.Key = strings.ToUpper(keyPart)
	default:
		named, ok := namedKeys[strings.ToLower(keyPart)]
		if !ok {
			return Shortcut{}, fmt.Errorf("%w: unknown key %q in %q", ErrInvalidShortcut, keyPart, spec)
		}
		sc.Key = named
	}
	return sc, nil
}

// String returns the canonical form, e.g. "Ctrl-Shift-R".
func (s Shortcut) String() string {
	var parts []string
	if s.Mods.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if s.Mods.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if s.Mods.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if s.Mods.Has(ModMeta) {
		parts = append(parts, "Meta")
	}
	parts = append(parts, s.Key)
	return strings.Join(parts, "-")
}
