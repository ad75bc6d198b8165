package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Recording modes for the global hotkey.
const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"
)

type Config struct {
	Hotkey       string        `json:"hotkey" yaml:"hotkey"`
	HotkeyDarwin string        `json:"hotkey_darwin" yaml:"hotkey_darwin"`
	Mode         string        `json:"mode" yaml:"mode"` // "PushToTalk" or "Toggle"
	LogLevel     string        `json:"log_level" yaml:"log_level"`
	Audio        AudioConfig   `json:"audio" yaml:"audio"`
	Output       OutputConfig  `json:"output" yaml:"output"`
	Metrics      MetricsConfig `json:"metrics" yaml:"metrics"`
	RunAtLogin   bool          `json:"run_at_login" yaml:"run_at_login"`

	// path is where Save writes. Empty means the platform config path.
	path string
}

type AudioConfig struct {
	Backend       string `json:"backend" yaml:"backend"`     // "portaudio", "malgo" or "sim"
	DeviceID      string `json:"device_id" yaml:"device_id"` // empty for the default input
	SampleRate    int    `json:"sample_rate" yaml:"sample_rate"`
	Channels      int    `json:"channels" yaml:"channels"`
	BitsPerSample int    `json:"bits_per_sample" yaml:"bits_per_sample"`
	IntervalMs    int    `json:"interval_ms" yaml:"interval_ms"`
}

// Interval is the drain period. Zero leaves the choice to the recorder.
func (a AudioConfig) Interval() time.Duration {
	return time.Duration(a.IntervalMs) * time.Millisecond
}

type OutputConfig struct {
	Directory     string `json:"directory" yaml:"directory"`
	SplitChannels bool   `json:"split_channels" yaml:"split_channels"`
	// DailySubdirs groups recordings under wav_samples_MM_dd.
	DailySubdirs bool `json:"daily_subdirs" yaml:"daily_subdirs"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotkey:       "Alt+Space",
		HotkeyDarwin: "Alt+Space", // Option+Space
		Mode:         ModeToggle,
		LogLevel:     "info",
		Audio: AudioConfig{
			Backend:       "portaudio",
			DeviceID:      "",
			SampleRate:    44100,
			Channels:      2,
			BitsPerSample: 16,
			IntervalMs:    500,
		},
		Output: OutputConfig{
			Directory:     DefaultOutputDir(),
			SplitChannels: false,
			DailySubdirs:  true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		RunAtLogin: false,
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	cfg := Default()

	// Load existing config if it exists
	if data, err := os.ReadFile(configPath()); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.Path()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the file Save writes to.
func (c *Config) Path() string {
	if c.path != "" {
		return c.path
	}
	return configPath()
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "stereo-recorder", "config.json")
}

// DefaultOutputDir returns the platform-specific directory recordings go to
func DefaultOutputDir() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Music"
	case "windows":
		base = os.Getenv("USERPROFILE") + `\Music`
	default:
		if xdg := os.Getenv("XDG_MUSIC_DIR"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/Music"
		}
	}

	return filepath.Join(base, "stereo-recorder")
}
