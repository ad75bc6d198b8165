package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"
)

type portAudioBackend struct{}

// NewPortAudio initializes PortAudio and returns a capture backend on top of it.
func NewPortAudio() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (p *portAudioBackend) Name() string { return BackendPortAudio }

func (p *portAudioBackend) MinBufferSize(sampleRate, channels, bitsPerSample int) (int, error) {
	if err := checkPortAudioBits(bitsPerSample); err != nil {
		return 0, err
	}
	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return 0, fmt.Errorf("failed to get default input device: %w", err)
	}
	frames := int(math.Ceil(device.DefaultLowInputLatency.Seconds() * float64(sampleRate)))
	return frames * bitsPerSample / 8 * channels, nil
}

func (p *portAudioBackend) Open(params StreamParams) (Stream, error) {
	if err := checkPortAudioBits(params.BitsPerSample); err != nil {
		return nil, err
	}
	device, err := findPortAudioDevice(params.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}
	if device.MaxInputChannels < params.Channels {
		return nil, fmt.Errorf("%w: device %q has %d input channels, need %d",
			ErrDeviceInit, device.Name, device.MaxInputChannels, params.Channels)
	}

	pa := &portAudioDevice{}
	rs, err := newRingStream(params, pa)
	if err != nil {
		return nil, err
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: params.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(params.SampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, portAudioCallback(rs, params))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open audio stream: %w", ErrDeviceInit, err)
	}
	pa.stream = stream

	return rs, nil
}

// portAudioCallback converts PortAudio's typed sample slices to little-endian
// bytes. The scratch buffer is reused between callbacks.
func portAudioCallback(rs *ringStream, params StreamParams) interface{} {
	scratch := make([]byte, params.BufferSize)
	grow := func(n int) []byte {
		if n > len(scratch) {
			scratch = make([]byte, n)
		}
		return scratch[:n]
	}

	switch params.BitsPerSample {
	case 8:
		return func(in []uint8) {
			rs.push(in)
		}
	case 32:
		return func(in []int32) {
			out := grow(len(in) * 4)
			for i, v := range in {
				binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
			}
			rs.push(out)
		}
	default:
		return func(in []int16) {
			out := grow(len(in) * 2)
			for i, v := range in {
				binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
			}
			rs.push(out)
		}
	}
}

func checkPortAudioBits(bits int) error {
	switch bits {
	case 8, 16, 32:
		return nil
	}
	return fmt.Errorf("%w: portaudio backend does not support %d-bit capture", ErrDeviceInit, bits)
}

func findPortAudioDevice(source string) (*portaudio.DeviceInfo, error) {
	if IsDefaultSource(source) {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == source && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", source)
}

func (p *portAudioBackend) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

type portAudioDevice struct {
	stream *portaudio.Stream
}

func (d *portAudioDevice) start() error {
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (d *portAudioDevice) stop() error {
	return d.stream.Stop()
}

func (d *portAudioDevice) release() error {
	return d.stream.Close()
}
