//go:build !darwin

package permissions

// Other platforms have no capture or input permission gate.
type platform struct{}

func (platform) Microphone() Status { return StatusAuthorized }

func (platform) RequestMicrophone() {}

func (platform) Accessibility() bool { return true }
