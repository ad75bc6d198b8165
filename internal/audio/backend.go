package audio

import (
	"fmt"

	"github.com/petems/stereo-recorder/internal/config"
)

// Backend names accepted in the audio configuration.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendSim       = "sim"
)

// New creates the capture backend selected by cfg.
func New(cfg config.AudioConfig) (Backend, error) {
	switch cfg.Backend {
	case "", BackendPortAudio:
		return NewPortAudio()
	case BackendMalgo:
		return NewMalgo()
	case BackendSim:
		return NewSim(SimOptions{}), nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
}
