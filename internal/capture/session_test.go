package capture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petems/stereo-recorder/internal/audio"
	"github.com/petems/stereo-recorder/internal/wavfile"
	"github.com/rs/zerolog"
)

var testClock = time.UnixMilli(1700000000000)

func stereoConfig() Config {
	return Config{
		Channels:      2,
		SampleRate:    8000,
		BitsPerSample: 16,
		Interval:      10 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, cfg Config, backend *fakeBackend) *Session {
	t.Helper()
	s, err := NewSession(cfg, backend,
		WithLogger(zerolog.Nop()),
		WithClock(func() time.Time { return testClock }),
	)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.CleanUp)
	return s
}

func readWAV(t *testing.T, path string) (wavfile.Header, []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	h, err := wavfile.ReadHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadHeader %s: %v", path, err)
	}
	return h, data[wavfile.HeaderSize:]
}

func TestSplitRecordingTwoCycles(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)
	dir := t.TempDir()

	// Priming block, discarded.
	backend.queue([]byte{0xEE, 0xEE, 0xEE, 0xEE})
	files, err := s.Start(dir, true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	wantFiles := []string{
		filepath.Join(dir, "sample_1700000000000_channel_left.wav"),
		filepath.Join(dir, "sample_1700000000000_channel_right.wav"),
	}
	if len(files) != 2 || files[0] != wantFiles[0] || files[1] != wantFiles[1] {
		t.Fatalf("files = %v, want %v", files, wantFiles)
	}

	stream := backend.stream(t)
	backend.queue([]byte{0x01, 0x02, 0x11, 0x12})
	stream.notify(t)
	waitFor(t, "first cycle", func() bool { return s.PayloadSize() == 4 })

	backend.queue([]byte{0x03, 0x04, 0x13, 0x14})
	stream.notify(t)
	waitFor(t, "second cycle", func() bool { return s.PayloadSize() == 8 })

	n, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n != 1 {
		t.Fatalf("Stop = %d, want 1", n)
	}

	lh, left := readWAV(t, files[0])
	rh, right := readWAV(t, files[1])

	if !bytes.Equal(left, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("left payload = % x", left)
	}
	if !bytes.Equal(right, []byte{0x11, 0x12, 0x13, 0x14}) {
		t.Errorf("right payload = % x", right)
	}
	for _, h := range []wavfile.Header{lh, rh} {
		if h.DataSize != 4 || h.ChunkSize != 40 {
			t.Errorf("sizes = %d/%d, want 40/4", h.ChunkSize, h.DataSize)
		}
		if h.NumChannels != 1 || h.BlockAlign != 4 {
			t.Errorf("channels/block align = %d/%d, want 1/4", h.NumChannels, h.BlockAlign)
		}
	}
}

func TestJoinedRecordingRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)
	dir := t.TempDir()

	backend.queue(make([]byte, 4))
	files, err := s.Start(dir, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "sample_1700000000000.wav" {
		t.Fatalf("files = %v", files)
	}

	stream := backend.stream(t)
	var want []byte
	for cycle := 0; cycle < 3; cycle++ {
		block := make([]byte, s.Sizing().DrainBytes())
		for i := range block {
			block[i] = byte(cycle*31 + i)
		}
		want = append(want, block...)
		backend.queue(block)
		stream.notify(t)
		size := int64(len(want))
		waitFor(t, "cycle", func() bool { return s.PayloadSize() == size })
	}

	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	info, err := os.Stat(files[0])
	if err != nil {
		t.Fatal(err)
	}
	h, payload := readWAV(t, files[0])
	if int64(h.DataSize) != int64(len(want)) {
		t.Errorf("DataSize = %d, want %d", h.DataSize, len(want))
	}
	if info.Size() != wavfile.HeaderSize+int64(h.DataSize) {
		t.Errorf("file length %d != 44 + %d", info.Size(), h.DataSize)
	}
	if !bytes.Equal(payload, want) {
		t.Error("payload differs from captured data")
	}
	if h.NumChannels != 2 || h.BlockAlign != 4 {
		t.Errorf("channels/block align = %d/%d", h.NumChannels, h.BlockAlign)
	}
}

func TestPartialFramesAreNotWritten(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)

	backend.queue(make([]byte, 4))
	if _, err := s.Start(t.TempDir(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	backend.queue([]byte{1, 2, 3, 4, 5, 6})
	backend.stream(t).notify(t)
	waitFor(t, "cycle", func() bool { return s.PayloadSize() == 4 })

	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := s.PayloadSize(); got != 4 {
		t.Fatalf("PayloadSize = %d, want 4", got)
	}
}

func TestStopWhenIdleReturnsCounter(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)

	n, err := s.Stop()
	if err != nil || n != 0 {
		t.Fatalf("Stop on fresh session = %d, %v", n, err)
	}
	if backend.opens != 0 {
		t.Fatalf("Stop opened the device")
	}

	backend.queue(make([]byte, 4))
	files, err := s.Start(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n, err := s.Stop(); err != nil || n != 1 {
		t.Fatalf("Stop = %d, %v", n, err)
	}

	before, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if n, err := s.Stop(); err != nil || n != 1 {
			t.Fatalf("repeated Stop = %d, %v", n, err)
		}
	}
	after, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("idle Stop modified the file")
	}
	if s.State() != StateStopped {
		t.Fatalf("State = %s, want stopped", s.State())
	}
}

func TestStartTwiceResetsPayload(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)
	dir := t.TempDir()

	backend.queue(make([]byte, 4))
	first, err := s.Start(dir, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := backend.stream(t)
	backend.queue([]byte{1, 1, 1, 1, 2, 2, 2, 2})
	stream.notify(t)
	waitFor(t, "first recording", func() bool { return s.PayloadSize() == 8 })

	// A new clock value keeps the two recordings in separate files.
	s.now = func() time.Time { return testClock.Add(time.Second) }
	backend.queue(make([]byte, 4))
	second, err := s.Start(dir, false)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := s.PayloadSize(); got != 0 {
		t.Fatalf("PayloadSize after restart = %d, want 0", got)
	}
	if second[0] == first[0] {
		t.Fatalf("restart reused %s", first[0])
	}

	starts, stops, _ := stream.counts()
	if starts != 2 || stops != 1 {
		t.Fatalf("stream starts/stops = %d/%d, want 2/1", starts, stops)
	}
	if backend.opens != 1 {
		t.Fatalf("device opened %d times, want 1", backend.opens)
	}

	backend.queue([]byte{9, 9, 9, 9})
	stream.notify(t)
	waitFor(t, "second recording", func() bool { return s.PayloadSize() == 4 })

	if n, err := s.Stop(); err != nil || n != 1 {
		t.Fatalf("Stop = %d, %v", n, err)
	}

	h1, p1 := readWAV(t, first[0])
	if h1.DataSize != 8 || !bytes.Equal(p1, []byte{1, 1, 1, 1, 2, 2, 2, 2}) {
		t.Errorf("first file: size %d payload % x", h1.DataSize, p1)
	}
	h2, p2 := readWAV(t, second[0])
	if h2.DataSize != 4 || !bytes.Equal(p2, []byte{9, 9, 9, 9}) {
		t.Errorf("second file: size %d payload % x", h2.DataSize, p2)
	}
}

func TestDrainReadFailureSkipsCycle(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)

	backend.queue(make([]byte, 4))
	if _, err := s.Start(t.TempDir(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := backend.stream(t)

	backend.queueErr(errFlakyRead)
	stream.notify(t)
	waitFor(t, "read error", func() bool { return s.Stats().ReadErrors == 1 })

	backend.queue([]byte{5, 6, 7, 8})
	stream.notify(t)
	waitFor(t, "recovery", func() bool { return s.PayloadSize() == 4 })

	if n, err := s.Stop(); err != nil || n != 1 {
		t.Fatalf("Stop = %d, %v", n, err)
	}
}

func TestDrainWriteFailureKeepsDraining(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)

	backend.queue(make([]byte, 4))
	if _, err := s.Start(t.TempDir(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := backend.stream(t)

	s.drainMu.Lock()
	if err := s.writers[0].Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	s.drainMu.Unlock()

	for i := int64(1); i <= 2; i++ {
		backend.queue([]byte{1, 2, 3, 4})
		stream.notify(t)
		want := i
		waitFor(t, "write error", func() bool { return s.Stats().WriteErrors == want })
	}

	n, err := s.Stop()
	if n != 1 {
		t.Fatalf("Stop = %d, want 1", n)
	}
	if !errors.Is(err, wavfile.ErrFinalized) {
		t.Fatalf("Stop err = %v, want ErrFinalized", err)
	}
}

func TestInitializeFailureIsRetryable(t *testing.T) {
	backend := newFakeBackend()
	backend.openErrs = []error{errors.New("device busy")}
	s := newTestSession(t, stereoConfig(), backend)

	if err := s.Initialize(); !errors.Is(err, audio.ErrDeviceInit) {
		t.Fatalf("Initialize err = %v, want ErrDeviceInit", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("State = %s, want idle", s.State())
	}

	if err := s.Initialize(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := s.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if backend.opens != 2 {
		t.Fatalf("opens = %d, want 2", backend.opens)
	}
	if s.State() != StateInitialized {
		t.Fatalf("State = %s, want initialized", s.State())
	}
	if fp := backend.stream(t).framePeriod; fp != s.Sizing().FramePeriod {
		t.Fatalf("notification period = %d, want %d", fp, s.Sizing().FramePeriod)
	}
}

func TestSplitRequiresStereo16(t *testing.T) {
	cfg := stereoConfig()
	cfg.Channels = 1
	s := newTestSession(t, cfg, newFakeBackend())

	if _, err := s.Start(t.TempDir(), true); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start err = %v, want ErrInvalidConfig", err)
	}
}

func TestStartMissingDirectory(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)

	_, err := s.Start(filepath.Join(t.TempDir(), "missing"), true)
	if !errors.Is(err, wavfile.ErrIO) {
		t.Fatalf("Start err = %v, want ErrIO", err)
	}
	if s.Recording() {
		t.Fatal("recording after failed Start")
	}
}

func TestCleanUpIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)

	// Never started.
	s.CleanUp()
	if s.State() != StateReleased {
		t.Fatalf("State = %s, want released", s.State())
	}

	s2 := newTestSession(t, stereoConfig(), backend)
	backend.queue(make([]byte, 4))
	if _, err := s2.Start(t.TempDir(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := backend.stream(t)

	s2.CleanUp()
	s2.CleanUp()

	if _, _, releases := stream.counts(); releases != 1 {
		t.Fatalf("releases = %d, want 1", releases)
	}
	if s2.Recording() {
		t.Fatal("still recording after CleanUp")
	}
	if _, err := s2.Start(t.TempDir(), false); !errors.Is(err, ErrReleased) {
		t.Fatalf("Start after CleanUp err = %v, want ErrReleased", err)
	}
	if err := s2.Initialize(); !errors.Is(err, ErrReleased) {
		t.Fatalf("Initialize after CleanUp err = %v, want ErrReleased", err)
	}
}

func TestStopReleasesDeviceAndRestartReopens(t *testing.T) {
	backend := newFakeBackend()
	s := newTestSession(t, stereoConfig(), backend)
	dir := t.TempDir()

	backend.queue(make([]byte, 4))
	if _, err := s.Start(dir, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := backend.stream(t)
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, _, releases := first.counts(); releases != 1 {
		t.Fatalf("releases = %d, want 1", releases)
	}

	s.now = func() time.Time { return testClock.Add(time.Minute) }
	backend.queue(make([]byte, 4))
	if _, err := s.Start(dir, true); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if backend.opens != 2 {
		t.Fatalf("opens = %d, want 2", backend.opens)
	}
	if n, err := s.Stop(); err != nil || n != 2 {
		t.Fatalf("Stop = %d, %v", n, err)
	}
}

func TestNewSessionUsesDeviceMinimum(t *testing.T) {
	backend := newFakeBackend()
	backend.minBuf = 10000
	s := newTestSession(t, stereoConfig(), backend)

	sz := s.Sizing()
	if !sz.Clamped || sz.BufferSize != 10000 || sz.FramePeriod != 1250 {
		t.Fatalf("Sizing = %+v", sz)
	}

	if _, err := NewSession(Config{Channels: 3, SampleRate: 8000, BitsPerSample: 16}, backend); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewSession err = %v, want ErrInvalidConfig", err)
	}
}
