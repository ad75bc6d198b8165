package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
)

// SimOptions configures the simulated input device.
type SimOptions struct {
	// Frequencies holds one tone per channel in Hz. Defaults to 440 and 660.
	Frequencies []float64
	// Amplitude in [0, 1]. Defaults to 0.5.
	Amplitude float64
	// Tick is how often generated frames are delivered. Defaults to 10ms.
	Tick time.Duration
	// MinBuffer is the reported minimum buffer size in bytes.
	MinBuffer int
}

type simBackend struct {
	opts SimOptions
}

// NewSim returns a backend that synthesizes one sine tone per channel in real time.
func NewSim(opts SimOptions) Backend {
	if len(opts.Frequencies) == 0 {
		opts.Frequencies = []float64{440, 660}
	}
	if opts.Amplitude <= 0 || opts.Amplitude > 1 {
		opts.Amplitude = 0.5
	}
	if opts.Tick <= 0 {
		opts.Tick = 10 * time.Millisecond
	}
	return &simBackend{opts: opts}
}

func (s *simBackend) Name() string { return BackendSim }

func (s *simBackend) MinBufferSize(sampleRate, channels, bitsPerSample int) (int, error) {
	if err := checkSimBits(bitsPerSample); err != nil {
		return 0, err
	}
	return s.opts.MinBuffer, nil
}

func (s *simBackend) Open(params StreamParams) (Stream, error) {
	if err := checkSimBits(params.BitsPerSample); err != nil {
		return nil, err
	}
	if !IsDefaultSource(params.Source) && params.Source != simDeviceName {
		return nil, fmt.Errorf("%w: device not found: %s", ErrDeviceInit, params.Source)
	}
	gen := &simGenerator{opts: s.opts, params: params}
	rs, err := newRingStream(params, gen)
	if err != nil {
		return nil, err
	}
	gen.sink = rs.push
	return rs, nil
}

func (s *simBackend) ListDevices() ([]AudioDevice, error) {
	return []AudioDevice{{ID: simDeviceName, Name: simDeviceName, Default: true}}, nil
}

func (s *simBackend) Close() error { return nil }

const simDeviceName = "Simulated Input"

func checkSimBits(bits int) error {
	switch bits {
	case 8, 16, 24, 32:
		return nil
	}
	return fmt.Errorf("%w: unsupported bit depth %d", ErrDeviceInit, bits)
}

type simGenerator struct {
	opts   SimOptions
	params StreamParams
	sink   func([]byte)

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup

	phase []float64
}

func (g *simGenerator) start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done != nil {
		return nil
	}
	g.done = make(chan struct{})
	if g.phase == nil {
		g.phase = make([]float64, g.params.Channels)
	}
	g.wg.Add(1)
	go g.run(g.done)
	return nil
}

func (g *simGenerator) stop() error {
	g.mu.Lock()
	done := g.done
	g.done = nil
	g.mu.Unlock()

	if done != nil {
		close(done)
		g.wg.Wait()
	}
	return nil
}

func (g *simGenerator) release() error {
	return g.stop()
}

func (g *simGenerator) run(done <-chan struct{}) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.opts.Tick)
	defer ticker.Stop()

	began := time.Now()
	var produced int64
	var block []byte

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			due := int64(now.Sub(began).Seconds() * float64(g.params.SampleRate))
			frames := int(due - produced)
			if frames <= 0 {
				continue
			}
			block = g.render(block, frames)
			produced += int64(frames)
			g.sink(block)
		}
	}
}

func (g *simGenerator) render(block []byte, frames int) []byte {
	sampleBytes := g.params.BitsPerSample / 8
	n := frames * sampleBytes * g.params.Channels
	if cap(block) < n {
		block = make([]byte, n)
	}
	block = block[:n]

	off := 0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < g.params.Channels; ch++ {
			freq := g.opts.Frequencies[ch%len(g.opts.Frequencies)]
			v := g.opts.Amplitude * math.Sin(g.phase[ch])
			g.phase[ch] += 2 * math.Pi * freq / float64(g.params.SampleRate)
			if g.phase[ch] > 2*math.Pi {
				g.phase[ch] -= 2 * math.Pi
			}
			putSample(block[off:], v, g.params.BitsPerSample)
			off += sampleBytes
		}
	}
	return block
}

// putSample encodes v in [-1, 1] as little-endian PCM. 8-bit WAV is unsigned.
func putSample(dst []byte, v float64, bits int) {
	switch bits {
	case 8:
		dst[0] = uint8(128 + int(v*127))
	case 16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v*math.MaxInt16)))
	case 24:
		s := int32(v * 8388607)
		dst[0] = byte(s)
		dst[1] = byte(s >> 8)
		dst[2] = byte(s >> 16)
	case 32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v*math.MaxInt32)))
	}
}
