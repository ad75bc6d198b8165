package capture

import (
	"fmt"
	"time"
)

// DefaultInterval is the drain period used when Config.Interval is zero.
const DefaultInterval = 500 * time.Millisecond

// BufferSizing is the device buffer and drain period chosen for a format.
type BufferSizing struct {
	// FramePeriod is the number of frames captured between two drain notifications.
	FramePeriod int
	// BufferSize is the device buffer in bytes, twice a drain block unless clamped.
	BufferSize int
	// MinBufferSize is what the device reported as its smallest buffer.
	MinBufferSize int
	FrameBytes    int
	// Clamped is set when the device minimum overrode the computed size.
	Clamped bool
}

// DrainBytes is the size of one drain block.
func (b BufferSizing) DrainBytes() int {
	return b.FramePeriod * b.FrameBytes
}

// ComputeBufferSizing sizes the device buffer so that one interval of audio
// fits twice, then raises it to the device minimum when needed. A raised
// buffer keeps the double-buffer ratio by lengthening the frame period.
func ComputeBufferSizing(sampleRate, channels, bitsPerSample int, interval time.Duration, minBuf int) (BufferSizing, error) {
	if sampleRate <= 0 {
		return BufferSizing{}, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}
	if channels < 1 || channels > 2 {
		return BufferSizing{}, fmt.Errorf("%w: %d channels, want 1 or 2", ErrInvalidConfig, channels)
	}
	if bitsPerSample <= 0 || bitsPerSample%8 != 0 {
		return BufferSizing{}, fmt.Errorf("%w: %d bits per sample", ErrInvalidConfig, bitsPerSample)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	frameBytes := bitsPerSample / 8 * channels
	framePeriod := int(int64(sampleRate) * interval.Milliseconds() / 1000)
	if framePeriod < 1 {
		return BufferSizing{}, fmt.Errorf("%w: interval %s holds no frame at %d Hz", ErrInvalidConfig, interval, sampleRate)
	}

	s := BufferSizing{
		FramePeriod:   framePeriod,
		BufferSize:    framePeriod * 2 * frameBytes,
		MinBufferSize: minBuf,
		FrameBytes:    frameBytes,
	}
	if s.BufferSize < minBuf {
		s.BufferSize = (minBuf + frameBytes - 1) / frameBytes * frameBytes
		s.FramePeriod = s.BufferSize / (2 * frameBytes)
		s.Clamped = true
	}
	return s, nil
}
