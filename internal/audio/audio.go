package audio

import "errors"

var (
	// ErrDeviceInit is returned when a capture device cannot be brought to a ready state.
	ErrDeviceInit = errors.New("audio: device not ready")
	// ErrStreamStopped is returned by Read once a stopped stream has no buffered data left.
	ErrStreamStopped = errors.New("audio: stream stopped")
)

// Backend is a host audio API able to open capture streams.
type Backend interface {
	Name() string
	// MinBufferSize reports the smallest buffer in bytes the device accepts for the format.
	MinBufferSize(sampleRate, channels, bitsPerSample int) (int, error)
	Open(p StreamParams) (Stream, error)
	ListDevices() ([]AudioDevice, error)
	Close() error
}

// Stream is one opened capture stream.
//
// The device posts into the mailbox every framePeriod frames it captures. Posts
// never block: a notification is dropped when one is already pending.
type Stream interface {
	SetPeriodicNotification(framePeriod int, mailbox chan<- struct{})
	Start() error
	Stop() error
	// Read blocks until len(p) bytes are captured or the stream stops.
	Read(p []byte) (int, error)
	Release() error
	Recording() bool
	// Overruns counts input bytes dropped because the buffer was full.
	Overruns() int64
}

// StreamParams describes the capture format and the device buffer size.
type StreamParams struct {
	// Source selects the input device; empty or "default" picks the system default.
	Source        string
	SampleRate    int
	Channels      int
	BitsPerSample int
	BufferSize    int
}

// FrameBytes is the size of one frame (one sample per channel).
func (p StreamParams) FrameBytes() int {
	return p.BitsPerSample / 8 * p.Channels
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}

// IsDefaultSource reports whether source names the system default device.
func IsDefaultSource(source string) bool {
	return source == "" || source == "default"
}
