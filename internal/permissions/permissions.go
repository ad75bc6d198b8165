// Package permissions checks the OS privacy permissions the recorder needs
// before it opens a capture device or grabs a global hotkey.
package permissions

import "errors"

var (
	// ErrMicrophone is returned when the process may not record audio.
	ErrMicrophone = errors.New("microphone permission not granted")
	// ErrAccessibility is returned when global hotkeys cannot be registered.
	ErrAccessibility = errors.New("accessibility permission not granted")
)

// Status mirrors the platform authorization states for a capture device.
type Status int

const (
	StatusNotDetermined Status = iota
	StatusRestricted
	StatusDenied
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusNotDetermined:
		return "not determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	}
	return "unknown"
}

// Checker is the platform probe used by Ensure.
type Checker interface {
	Microphone() Status
	RequestMicrophone()
	Accessibility() bool
}

// Ensure verifies the microphone permission, requesting it when it has not
// been decided yet, and the accessibility permission when hotkeys is set.
func Ensure(c Checker, hotkeys bool) error {
	switch c.Microphone() {
	case StatusAuthorized:
	case StatusNotDetermined:
		c.RequestMicrophone()
		return ErrMicrophone
	default:
		return ErrMicrophone
	}

	if hotkeys && !c.Accessibility() {
		return ErrAccessibility
	}
	return nil
}

// EnsurePermissions runs Ensure against the current platform.
func EnsurePermissions(hotkeys bool) error {
	return Ensure(platform{}, hotkeys)
}
