// Package capture drives a capture stream into WAV files.
//
// A Session owns one device stream and the writers it feeds. Control calls
// (Initialize, Start, Stop, CleanUp) come from the caller's goroutine; the
// stream's periodic notifications are handled on a dedicated drain goroutine
// that reads one block per notification and appends it to the open files.
package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/petems/stereo-recorder/internal/observe"
	"github.com/petems/stereo-recorder/internal/wavfile"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidConfig is returned for formats the session cannot record.
	ErrInvalidConfig = errors.New("capture: invalid config")
	// ErrDeviceRead marks a failed drain read. The cycle is skipped.
	ErrDeviceRead = errors.New("capture: device read failed")
	// ErrReleased is returned by control calls after CleanUp.
	ErrReleased = errors.New("capture: session released")
)

// Config is the capture format. It does not change for the life of a session.
type Config struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	// Source selects the input device; empty or "default" picks the system default.
	Source string
	// Interval between drains. Zero means DefaultInterval.
	Interval time.Duration
}

// FrameBytes is the size of one frame in bytes.
func (c Config) FrameBytes() int {
	return c.BitsPerSample / 8 * c.Channels
}

// CanSplit reports whether the format can be split into two mono files.
func (c Config) CanSplit() bool {
	return c.Channels == 2 && c.BitsPerSample == 16
}

// State is a Session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitialized
	StateRecording
	StateStopped
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialized:
		return "initialized"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	case StateReleased:
		return "released"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Stats are running counters over the life of a session.
type Stats struct {
	Cycles       int64
	Skipped      int64
	ReadErrors   int64
	WriteErrors  int64
	BytesWritten int64
	Overruns     int64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics records drain and file metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock sets the clock used to name output files.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session records one device into one joined WAV file or two mono files.
type Session struct {
	cfg     Config
	backend audio.Backend
	sizing  BufferSizing
	log     zerolog.Logger
	metrics *observe.Metrics
	now     func() time.Time

	// mu serializes control calls and guards the stream lifecycle.
	mu         sync.Mutex
	state      atomic.Int32
	stream     audio.Stream
	mailbox    chan struct{}
	done       chan struct{}
	loopExited chan struct{}
	recordings int

	recording atomic.Bool

	// drainMu is held for one drain cycle. Control calls take it to wait
	// for an in-flight cycle before swapping or finalizing writers.
	drainMu sync.Mutex
	split   bool
	writers []*wavfile.Writer
	files   []string
	buf     []byte
	left    []byte
	right   []byte

	payload      atomic.Int64
	cycles       atomic.Int64
	skipped      atomic.Int64
	readErrors   atomic.Int64
	writeErrors  atomic.Int64
	bytesWritten atomic.Int64
	overruns     atomic.Int64
}

// NewSession validates cfg and sizes the device buffer against the backend's
// minimum. No device is opened until Initialize or Start.
func NewSession(cfg Config, backend audio.Backend, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidConfig)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	// Validate before asking the device about the format.
	if _, err := ComputeBufferSizing(cfg.SampleRate, cfg.Channels, cfg.BitsPerSample, cfg.Interval, 0); err != nil {
		return nil, err
	}

	minBuf, err := backend.MinBufferSize(cfg.SampleRate, cfg.Channels, cfg.BitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("query minimum buffer size: %w", err)
	}
	sizing, err := ComputeBufferSizing(cfg.SampleRate, cfg.Channels, cfg.BitsPerSample, cfg.Interval, minBuf)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     cfg,
		backend: backend,
		sizing:  sizing,
		log:     zerolog.Nop(),
		metrics: observe.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize opens the stream, arms the periodic notification and starts the
// drain goroutine. It does nothing when a stream is already bound. A failure
// wraps audio.ErrDeviceInit and may be retried.
func (s *Session) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked()
}

func (s *Session) initializeLocked() error {
	if s.State() == StateReleased {
		return ErrReleased
	}
	if s.stream != nil {
		return nil
	}

	stream, err := s.backend.Open(audio.StreamParams{
		Source:        s.cfg.Source,
		SampleRate:    s.cfg.SampleRate,
		Channels:      s.cfg.Channels,
		BitsPerSample: s.cfg.BitsPerSample,
		BufferSize:    s.sizing.BufferSize,
	})
	if err != nil {
		if !errors.Is(err, audio.ErrDeviceInit) {
			err = fmt.Errorf("%w: %w", audio.ErrDeviceInit, err)
		}
		s.log.Error().Err(err).Str("backend", s.backend.Name()).Msg("Failed to open capture stream")
		return err
	}

	mailbox := make(chan struct{}, 1)
	stream.SetPeriodicNotification(s.sizing.FramePeriod, mailbox)

	s.stream = stream
	s.mailbox = mailbox
	s.done = make(chan struct{})
	s.loopExited = make(chan struct{})
	go s.drainLoop(stream, mailbox, s.done, s.loopExited)

	s.state.Store(int32(StateInitialized))
	s.log.Debug().
		Str("backend", s.backend.Name()).
		Int("frame_period", s.sizing.FramePeriod).
		Int("buffer_size", s.sizing.BufferSize).
		Bool("clamped", s.sizing.Clamped).
		Msg("Capture stream initialized")
	return nil
}

// Start opens the output files in dir and begins capturing into them. In split
// mode the left and right channels go to two mono files. When a recording is
// already running its files are finalized first and buffered audio from it is
// discarded. Start returns the paths it created.
func (s *Session) Start(dir string, split bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateReleased {
		return nil, ErrReleased
	}
	if split && !s.cfg.CanSplit() {
		return nil, fmt.Errorf("%w: split needs 2 channels at 16 bits, have %d at %d",
			ErrInvalidConfig, s.cfg.Channels, s.cfg.BitsPerSample)
	}
	if err := s.initializeLocked(); err != nil {
		return nil, err
	}

	if s.recording.Load() {
		s.log.Info().Strs("files", s.files).Msg("Restarting recording")
		s.recording.Store(false)
		s.metrics.ActiveRecordings.Add(context.Background(), -1)
		// Stopping drops whatever the ring still holds; Start refills it fresh.
		if err := s.stream.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop capture for restart")
		}
		s.drainMu.Lock()
		if err := s.finalizeWritersLocked(); err != nil {
			s.log.Error().Err(err).Msg("Failed to finalize previous recording")
		}
		s.drainMu.Unlock()
		s.discardNotification()
		s.state.Store(int32(StateStopped))
	}

	writers, err := s.openWriters(dir, split)
	if err != nil {
		return nil, err
	}

	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	if s.buf == nil {
		s.buf = make([]byte, s.sizing.DrainBytes())
		if s.cfg.CanSplit() {
			s.left = make([]byte, len(s.buf)/2)
			s.right = make([]byte, len(s.buf)/2)
		}
	}
	s.split = split
	s.writers = writers
	s.files = make([]string, len(writers))
	for i, w := range writers {
		s.files[i] = w.Path()
	}
	s.payload.Store(0)

	s.recording.Store(true)
	if !s.stream.Recording() {
		if err := s.stream.Start(); err != nil {
			s.recording.Store(false)
			s.files = nil
			if ferr := s.finalizeWritersLocked(); ferr != nil {
				s.log.Warn().Err(ferr).Msg("Failed to finalize unused files")
			}
			if !errors.Is(err, audio.ErrDeviceInit) {
				err = fmt.Errorf("%w: %w", audio.ErrDeviceInit, err)
			}
			s.log.Error().Err(err).Msg("Failed to start capture")
			return nil, err
		}
	}

	// Prime the device buffer. The first block is thrown away.
	if _, err := s.stream.Read(s.buf); err != nil {
		s.log.Warn().Err(err).Msg("Priming read failed")
	}

	s.state.Store(int32(StateRecording))
	s.metrics.ActiveRecordings.Add(context.Background(), 1)
	s.log.Info().Strs("files", s.files).Bool("split", split).Msg("Recording started")

	return append([]string(nil), s.files...), nil
}

func (s *Session) openWriters(dir string, split bool) ([]*wavfile.Writer, error) {
	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	base := filepath.Join(dir, "sample_"+stamp)
	bits := s.cfg.BitsPerSample

	if !split {
		w, err := wavfile.Open(base+".wav", wavfile.Format{
			SampleRate:         s.cfg.SampleRate,
			BitsPerSample:      bits,
			Channels:           s.cfg.Channels,
			BlockAlignChannels: s.cfg.Channels,
		})
		if err != nil {
			return nil, err
		}
		return []*wavfile.Writer{w}, nil
	}

	mono := wavfile.Format{
		SampleRate:         s.cfg.SampleRate,
		BitsPerSample:      bits,
		Channels:           1,
		BlockAlignChannels: s.cfg.Channels,
	}
	left, err := wavfile.Open(base+"_channel_left.wav", mono)
	if err != nil {
		return nil, err
	}
	right, err := wavfile.Open(base+"_channel_right.wav", mono)
	if err != nil {
		_ = left.Finalize()
		return nil, err
	}
	return []*wavfile.Writer{left, right}, nil
}

// discardNotification drops a notification posted for the previous recording.
func (s *Session) discardNotification() {
	select {
	case <-s.mailbox:
	default:
	}
}

// Stop ends the recording, releases the device and finalizes the files. It
// returns the number of recordings made by this session. When nothing is
// recording it only returns the count. Finalize failures are joined into the
// returned error; the count is still incremented.
func (s *Session) Stop() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording.Load() {
		return s.recordings, nil
	}

	// The flag goes first so a notification arriving now skips its drain.
	s.recording.Store(false)
	if err := s.stream.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stop capture")
	}

	// Taking drainMu waits for an in-flight cycle, which may still append
	// what the stream held. Later cycles see the cleared flag and skip.
	s.drainMu.Lock()
	err := s.finalizeWritersLocked()
	s.drainMu.Unlock()

	s.releaseStreamLocked()

	s.recordings++
	s.state.Store(int32(StateStopped))
	ctx := context.Background()
	s.metrics.ActiveRecordings.Add(ctx, -1)
	s.metrics.Recordings.Add(ctx, 1)

	s.log.Info().
		Int("recordings", s.recordings).
		Int64("payload_bytes", s.payload.Load()).
		Msg("Recording stopped")

	return s.recordings, err
}

// finalizeWritersLocked backpatches and closes every open writer. drainMu must be held.
func (s *Session) finalizeWritersLocked() error {
	var errs []error
	for _, w := range s.writers {
		if err := w.Finalize(); err != nil {
			s.writeErrors.Add(1)
			s.metrics.WriteErrors.Add(context.Background(), 1)
			errs = append(errs, fmt.Errorf("finalize %s: %w", w.Path(), err))
			continue
		}
		s.log.Debug().Str("path", w.Path()).Int64("payload_bytes", w.PayloadSize()).Msg("WAV finalized")
	}
	s.writers = nil
	return errors.Join(errs...)
}

// releaseStreamLocked releases the stream and stops the drain goroutine.
// Errors are logged and dropped. mu must be held.
func (s *Session) releaseStreamLocked() {
	if s.stream == nil {
		return
	}
	if n := s.stream.Overruns(); n > 0 {
		s.overruns.Add(n)
		s.metrics.Overruns.Add(context.Background(), n)
		s.log.Warn().Int64("bytes", n).Msg("Capture buffer overran")
	}
	if err := s.stream.Release(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to release capture stream")
	}
	close(s.done)
	<-s.loopExited

	s.stream = nil
	s.mailbox = nil
	s.done = nil
	s.loopExited = nil
}

// CleanUp stops capture and releases the device and drain goroutine if they
// exist. It is safe to call repeatedly and never fails. Open writers are left
// as they are; call Stop first to finalize them.
func (s *Session) CleanUp() {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Recovered during cleanup")
		}
		s.state.Store(int32(StateReleased))
	}()

	if s.recording.Swap(false) {
		s.metrics.ActiveRecordings.Add(context.Background(), -1)
	}
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("Stop during cleanup failed")
		}
		s.releaseStreamLocked()
	}
}

func (s *Session) drainLoop(stream audio.Stream, mailbox <-chan struct{}, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	for {
		select {
		case <-done:
			return
		case <-mailbox:
			s.drainOnce(stream)
		}
	}
}

// drainOnce handles one notification. Failures are logged and counted, never
// propagated, so the next notification is always served.
func (s *Session) drainOnce(stream audio.Stream) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Recovered in drain cycle")
		}
	}()

	s.cycles.Add(1)
	if !s.recording.Load() {
		s.skipped.Add(1)
		s.metrics.RecordDrain(ctx, "skipped", 0)
		return
	}

	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	// Re-check under the lock: Stop or a restart may have won the race.
	if !s.recording.Load() || len(s.writers) == 0 {
		s.skipped.Add(1)
		s.metrics.RecordDrain(ctx, "skipped", 0)
		return
	}

	began := time.Now()
	n, err := stream.Read(s.buf)
	if err != nil && n == 0 {
		s.readErrors.Add(1)
		s.metrics.ReadErrors.Add(ctx, 1)
		s.metrics.RecordDrain(ctx, "read_error", time.Since(began).Seconds())
		s.log.Warn().Err(fmt.Errorf("%w: %w", ErrDeviceRead, err)).Msg("Drain cycle skipped")
		return
	}

	block := s.buf[:n-n%s.cfg.FrameBytes()]
	result := "ok"
	if err := s.appendBlock(ctx, block); err != nil {
		result = "write_error"
		s.log.Error().Err(err).Msg("Failed to append audio")
	}
	s.metrics.RecordDrain(ctx, result, time.Since(began).Seconds())
}

// appendBlock writes one drained block to the open files. drainMu must be held.
func (s *Session) appendBlock(ctx context.Context, block []byte) error {
	if len(block) == 0 {
		return nil
	}
	if !s.split {
		return s.appendTo(ctx, s.writers[0], "joined", block)
	}

	n := audio.SplitStereo16(s.left, s.right, block)
	return errors.Join(
		s.appendTo(ctx, s.writers[0], "left", s.left[:n]),
		s.appendTo(ctx, s.writers[1], "right", s.right[:n]),
	)
}

func (s *Session) appendTo(ctx context.Context, w *wavfile.Writer, channel string, p []byte) error {
	before := w.PayloadSize()
	err := w.Append(p)
	written := w.PayloadSize() - before

	s.payload.Add(written)
	s.bytesWritten.Add(written)
	s.metrics.RecordBytes(ctx, channel, int(written))
	if err != nil {
		s.writeErrors.Add(1)
		s.metrics.WriteErrors.Add(ctx, 1)
		return fmt.Errorf("append %s: %w", w.Path(), err)
	}
	return nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Recording reports whether drains are currently written to files.
func (s *Session) Recording() bool {
	return s.recording.Load()
}

// Sizing returns the buffer sizing chosen at construction.
func (s *Session) Sizing() BufferSizing {
	return s.sizing
}

// Config returns the capture format.
func (s *Session) Config() Config {
	return s.cfg
}

// PayloadSize is the number of PCM bytes appended since the last Start,
// summed over all files.
func (s *Session) PayloadSize() int64 {
	return s.payload.Load()
}

// Recordings returns the number of recordings Stop has finished.
func (s *Session) Recordings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordings
}

// Files returns the paths of the current or most recent recording.
func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Cycles:       s.cycles.Load(),
		Skipped:      s.skipped.Load(),
		ReadErrors:   s.readErrors.Load(),
		WriteErrors:  s.writeErrors.Load(),
		BytesWritten: s.bytesWritten.Load(),
		Overruns:     s.overruns.Load(),
	}
}
