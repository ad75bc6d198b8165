package capture

import (
	"errors"
	"testing"
	"time"
)

func TestComputeBufferSizingScenario(t *testing.T) {
	got, err := ComputeBufferSizing(44100, 2, 16, 500*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("ComputeBufferSizing: %v", err)
	}
	if got.FramePeriod != 22050 {
		t.Errorf("FramePeriod = %d, want 22050", got.FramePeriod)
	}
	if got.BufferSize != 176400 {
		t.Errorf("BufferSize = %d, want 176400", got.BufferSize)
	}
	if got.FrameBytes != 4 || got.DrainBytes() != 88200 {
		t.Errorf("FrameBytes = %d DrainBytes = %d", got.FrameBytes, got.DrainBytes())
	}
	if got.Clamped {
		t.Error("unexpected clamp")
	}
}

func TestComputeBufferSizingDefaultsInterval(t *testing.T) {
	got, err := ComputeBufferSizing(44100, 2, 16, 0, 0)
	if err != nil {
		t.Fatalf("ComputeBufferSizing: %v", err)
	}
	if got.FramePeriod != 22050 {
		t.Errorf("FramePeriod = %d, want 22050", got.FramePeriod)
	}
}

func TestComputeBufferSizingProperties(t *testing.T) {
	rates := []int{8000, 11025, 16000, 22050, 44100, 48000, 96000}
	bits := []int{8, 16, 24, 32}
	mins := []int{0, 1, 3, 1000, 4097, 176401, 1 << 20}
	intervals := []time.Duration{10 * time.Millisecond, 100 * time.Millisecond, 500 * time.Millisecond}

	for _, sr := range rates {
		for ch := 1; ch <= 2; ch++ {
			for _, b := range bits {
				for _, minBuf := range mins {
					for _, iv := range intervals {
						s, err := ComputeBufferSizing(sr, ch, b, iv, minBuf)
						if err != nil {
							t.Fatalf("(%d,%d,%d,%s,%d): %v", sr, ch, b, iv, minBuf, err)
						}
						if s.BufferSize%s.FrameBytes != 0 {
							t.Errorf("(%d,%d,%d,%d): buffer %d not a multiple of %d", sr, ch, b, minBuf, s.BufferSize, s.FrameBytes)
						}
						if s.BufferSize < minBuf {
							t.Errorf("(%d,%d,%d,%d): buffer %d below minimum", sr, ch, b, minBuf, s.BufferSize)
						}
						if s.FramePeriod < 1 || 2*s.DrainBytes() > s.BufferSize {
							t.Errorf("(%d,%d,%d,%d): drain %d does not fit twice in %d", sr, ch, b, minBuf, s.DrainBytes(), s.BufferSize)
						}
						if s.Clamped != (minBuf > 2*s.FrameBytes*(sr*int(iv.Milliseconds())/1000)) {
							t.Errorf("(%d,%d,%d,%d): Clamped = %v", sr, ch, b, minBuf, s.Clamped)
						}
					}
				}
			}
		}
	}
}

func TestComputeBufferSizingClampRecomputesPeriod(t *testing.T) {
	// A minimum just past one second of audio rounds up to the next whole frame.
	s, err := ComputeBufferSizing(44100, 2, 16, 100*time.Millisecond, 176402)
	if err != nil {
		t.Fatalf("ComputeBufferSizing: %v", err)
	}
	if !s.Clamped {
		t.Fatal("expected clamp")
	}
	if s.BufferSize != 176404 {
		t.Errorf("BufferSize = %d, want 176404 (rounded up to a frame)", s.BufferSize)
	}
	if s.FramePeriod != 176404/8 {
		t.Errorf("FramePeriod = %d, want %d", s.FramePeriod, 176404/8)
	}
}

func TestComputeBufferSizingRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		sr, c, b int
		interval time.Duration
	}{
		{"zero rate", 0, 2, 16, 0},
		{"no channels", 44100, 0, 16, 0},
		{"three channels", 44100, 3, 16, 0},
		{"odd bits", 44100, 2, 12, 0},
		{"zero bits", 44100, 2, 0, 0},
		{"interval too short", 100, 1, 8, time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeBufferSizing(tt.sr, tt.c, tt.b, tt.interval, 0)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
