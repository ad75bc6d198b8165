package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// miniaudio picks a 10ms period with 3 periods per buffer for low-latency capture.
const (
	malgoPeriodMillis = 10
	malgoPeriods      = 3
)

type malgoBackend struct {
	ctx *malgo.AllocatedContext
}

// NewMalgo creates a capture backend on miniaudio.
func NewMalgo() (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &malgoBackend{ctx: ctx}, nil
}

func (m *malgoBackend) Name() string { return BackendMalgo }

func (m *malgoBackend) MinBufferSize(sampleRate, channels, bitsPerSample int) (int, error) {
	if _, err := malgoFormat(bitsPerSample); err != nil {
		return 0, err
	}
	frames := sampleRate * malgoPeriodMillis * malgoPeriods / 1000
	return frames * bitsPerSample / 8 * channels, nil
}

func (m *malgoBackend) Open(params StreamParams) (Stream, error) {
	format, err := malgoFormat(params.BitsPerSample)
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = format
	deviceConfig.Capture.Channels = uint32(params.Channels)
	deviceConfig.SampleRate = uint32(params.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = malgoPeriodMillis
	deviceConfig.Periods = malgoPeriods
	deviceConfig.Alsa.NoMMap = 1

	if !IsDefaultSource(params.Source) {
		info, err := m.findDevice(params.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDeviceInit, err)
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	dev := &malgoDevice{}
	rs, err := newRingStream(params, dev)
	if err != nil {
		return nil, err
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			rs.push(input)
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize capture device: %w", ErrDeviceInit, err)
	}
	dev.device = device

	return rs, nil
}

func (m *malgoBackend) findDevice(name string) (*malgo.DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name() == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func (m *malgoBackend) ListDevices() ([]AudioDevice, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	for _, d := range devices {
		result = append(result, AudioDevice{
			ID:      d.Name(),
			Name:    d.Name(),
			Default: d.IsDefault != 0,
		})
	}
	return result, nil
}

func (m *malgoBackend) Close() error {
	err := m.ctx.Uninit()
	m.ctx.Free()
	return err
}

func malgoFormat(bits int) (malgo.FormatType, error) {
	switch bits {
	case 8:
		return malgo.FormatU8, nil
	case 16:
		return malgo.FormatS16, nil
	case 24:
		return malgo.FormatS24, nil
	case 32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: malgo backend does not support %d-bit capture", ErrDeviceInit, bits)
}

type malgoDevice struct {
	device *malgo.Device
}

func (d *malgoDevice) start() error {
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (d *malgoDevice) stop() error {
	return d.device.Stop()
}

func (d *malgoDevice) release() error {
	d.device.Uninit()
	return nil
}
