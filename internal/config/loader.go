package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a JSON or YAML config at path on top of the defaults and
// validates it. Save on the result writes JSON back to the same path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml %q: %w", path, err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode json %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file type %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Validate checks that the config describes something we can record.
// It returns a joined error listing every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Mode != ModePushToTalk && c.Mode != ModeToggle {
		errs = append(errs, fmt.Errorf("mode %q is invalid; valid values: %s, %s", c.Mode, ModePushToTalk, ModeToggle))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: trace, debug, info, warn, error", c.LogLevel))
	}

	a := c.Audio
	switch a.Backend {
	case "", "portaudio", "malgo", "sim":
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: portaudio, malgo, sim", a.Backend))
	}
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate))
	}
	if a.Channels != 1 && a.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", a.Channels))
	}
	switch a.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("audio.bits_per_sample must be 8, 16, 24 or 32, got %d", a.BitsPerSample))
	}
	if a.IntervalMs < 0 {
		errs = append(errs, fmt.Errorf("audio.interval_ms must not be negative, got %d", a.IntervalMs))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory is required"))
	}
	if c.Output.SplitChannels && (a.Channels != 2 || a.BitsPerSample != 16) {
		errs = append(errs, errors.New("output.split_channels needs audio.channels 2 and audio.bits_per_sample 16"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
