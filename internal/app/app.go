package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/petems/stereo-recorder/internal/config"
	"github.com/rs/zerolog"
)

type Mode int

const (
	PushToTalk Mode = iota
	Toggle
)

// ErrBusy is returned by settings changes while a recording is running.
var ErrBusy = errors.New("cannot change while recording")

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

// Recorder is a capture session writing WAV files.
type Recorder interface {
	Start(dir string, split bool) ([]string, error)
	Stop() (int, error)
	CleanUp()
	Recording() bool
}

// RecorderFactory builds a recorder for the given audio settings.
type RecorderFactory func(cfg config.AudioConfig) (Recorder, error)

// Recording describes one finished or running recording.
type Recording struct {
	ID      string
	Dir     string
	Files   []string
	Split   bool
	Started time.Time
	Stopped time.Time
}

type Config struct {
	Devices       DeviceLister
	NewRecorder   RecorderFactory
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
	Clock         func() time.Time
}

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	ListDevices() ([]audio.AudioDevice, error)
}

type App struct {
	devices     DeviceLister
	newRecorder RecorderFactory
	cfg         *config.Config
	log         zerolog.Logger
	status      StatusUpdater
	now         func() time.Time

	mu         sync.Mutex
	recorder   Recorder
	recording  bool
	current    Recording
	last       *Recording
	recordings int
}

func New(cfg Config) *App {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &App{
		devices:     cfg.Devices,
		newRecorder: cfg.NewRecorder,
		cfg:         cfg.Config,
		log:         cfg.Logger,
		status:      cfg.StatusUpdater,
		now:         now,
	}
}

func (a *App) OnHotkey(pressed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mode := PushToTalk
	if a.cfg.Mode == config.ModeToggle {
		mode = Toggle
	}

	switch mode {
	case PushToTalk:
		if pressed {
			a.startLocked()
		} else {
			a.stopLocked()
		}
	case Toggle:
		if !pressed {
			return
		}
		if !a.recording {
			a.startLocked()
		} else {
			a.stopLocked()
		}
	}
}

// ToggleRecording starts a recording or stops the running one.
func (a *App) ToggleRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recording {
		_, err := a.stopLocked()
		return err
	}
	return a.startLocked()
}

// StartRecording creates a fresh recording directory and starts capturing into it.
func (a *App) StartRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked()
}

// StopRecording finalizes the running recording and returns how many
// recordings have been made.
func (a *App) StopRecording() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

func (a *App) startLocked() error {
	if a.recording {
		return nil
	}

	if a.recorder == nil {
		rec, err := a.newRecorder(a.cfg.Audio)
		if err != nil {
			a.fail(err, "Failed to create recorder")
			return err
		}
		a.recorder = rec
	}

	started := a.now()
	dir := a.recordingDir(started)
	if err := os.MkdirAll(dir, 0755); err != nil {
		err = fmt.Errorf("create recording directory: %w", err)
		a.fail(err, "Failed to start recording")
		return err
	}

	split := a.cfg.Output.SplitChannels
	files, err := a.recorder.Start(dir, split)
	if err != nil {
		a.fail(err, "Failed to start recording")
		return err
	}

	a.recording = true
	a.current = Recording{
		ID:      uuid.NewString(),
		Dir:     dir,
		Files:   files,
		Split:   split,
		Started: started,
	}

	a.log.Info().
		Str("recording_id", a.current.ID).
		Str("dir", dir).
		Bool("split", split).
		Msg("Starting recording")

	if a.status != nil {
		a.status.SetRecording()
	}
	return nil
}

func (a *App) stopLocked() (int, error) {
	if !a.recording {
		return a.recordings, nil
	}

	a.log.Info().Str("recording_id", a.current.ID).Msg("Stopping recording")
	if a.status != nil {
		a.status.SetProcessing()
	}

	count, err := a.recorder.Stop()
	a.recording = false
	a.recordings = count
	a.current.Stopped = a.now()
	last := a.current
	a.last = &last

	if err != nil {
		a.fail(err, "Recording finalized with errors")
		return count, err
	}

	a.log.Info().
		Str("recording_id", last.ID).
		Strs("files", last.Files).
		Dur("duration", last.Stopped.Sub(last.Started)).
		Int("recordings", count).
		Msg("Recording saved")
	if a.status != nil {
		a.status.SetIdle()
	}
	return count, nil
}

func (a *App) fail(err error, msg string) {
	a.log.Error().Err(err).Msg(msg)
	if a.status != nil {
		a.status.SetError()
	}
}

// recordingDir is <output>/wav_samples_MM_dd/sample_<unix ms>, without the
// daily level when daily subdirectories are off.
func (a *App) recordingDir(t time.Time) string {
	base := a.cfg.Output.Directory
	if a.cfg.Output.DailySubdirs {
		base = filepath.Join(base, "wav_samples_"+t.Format("01_02"))
	}
	return filepath.Join(base, "sample_"+strconv.FormatInt(t.UnixMilli(), 10))
}

func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.recording {
		_, err = a.stopLocked()
	}
	if a.recorder != nil {
		a.recorder.CleanUp()
		a.recorder = nil
	}

	return err
}

// Tray actions

func (a *App) SetMode(mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if mode != config.ModePushToTalk && mode != config.ModeToggle {
		return fmt.Errorf("unknown mode %q", mode)
	}
	a.cfg.Mode = mode
	return a.cfg.Save()
}

// SetSplit chooses between one stereo file and two mono files for the next recording.
func (a *App) SetSplit(split bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		return ErrBusy
	}
	if split && (a.cfg.Audio.Channels != 2 || a.cfg.Audio.BitsPerSample != 16) {
		return fmt.Errorf("split needs 2 channels at 16 bits")
	}

	a.cfg.Output.SplitChannels = split
	return a.cfg.Save()
}

func (a *App) SetDevice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		return ErrBusy
	}

	// The next recording opens the new device.
	if a.recorder != nil {
		a.recorder.CleanUp()
		a.recorder = nil
	}

	a.cfg.Audio.DeviceID = id
	return a.cfg.Save()
}

func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// LastRecording returns the most recently finished recording.
func (a *App) LastRecording() (Recording, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Recording{}, false
	}
	return *a.last, true
}

func (a *App) Split() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Output.SplitChannels
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.devices.ListDevices()
}
