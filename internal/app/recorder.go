package app

import (
	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/petems/stereo-recorder/internal/capture"
	"github.com/petems/stereo-recorder/internal/config"
	"github.com/petems/stereo-recorder/internal/observe"
	"github.com/rs/zerolog"
)

// SessionConfig converts the audio settings into a capture format.
func SessionConfig(a config.AudioConfig) capture.Config {
	return capture.Config{
		Channels:      a.Channels,
		SampleRate:    a.SampleRate,
		BitsPerSample: a.BitsPerSample,
		Source:        a.DeviceID,
		Interval:      a.Interval(),
	}
}

// NewSessionFactory returns a RecorderFactory creating capture sessions on backend.
func NewSessionFactory(backend audio.Backend, log zerolog.Logger, metrics *observe.Metrics) RecorderFactory {
	return func(cfg config.AudioConfig) (Recorder, error) {
		return capture.NewSession(SessionConfig(cfg), backend,
			capture.WithLogger(log.With().Str("component", "capture").Logger()),
			capture.WithMetrics(metrics),
		)
	}
}
