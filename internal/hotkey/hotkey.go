// Package hotkey registers global keyboard shortcuts that drive recording.
package hotkey

import "errors"

// ErrGrab is returned when the platform refuses a shortcut, usually because
// another application already owns it.
var ErrGrab = errors.New("hotkey: grab failed")

// Callback receives true on key press and false on release.
type Callback func(pressed bool)

// Manager registers accelerators such as "Ctrl+Shift+R" system-wide.
type Manager interface {
	Register(accel string, callback Callback) error
	Unregister(accel string) error
	Close() error
}
