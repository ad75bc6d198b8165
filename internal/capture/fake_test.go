package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petems/stereo-recorder/internal/audio"
)

type readResult struct {
	data []byte
	err  error
}

// fakeBackend opens fakeStreams that all read from the same scripted queue.
type fakeBackend struct {
	mu       sync.Mutex
	minBuf   int
	openErrs []error
	opens    int
	streams  []*fakeStream
	reads    chan readResult
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{reads: make(chan readResult, 64)}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) MinBufferSize(_, _, _ int) (int, error) {
	return b.minBuf, nil
}

func (b *fakeBackend) Open(p audio.StreamParams) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	if len(b.openErrs) > 0 {
		err := b.openErrs[0]
		b.openErrs = b.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s := &fakeStream{params: p, reads: b.reads}
	b.streams = append(b.streams, s)
	return s, nil
}

func (b *fakeBackend) ListDevices() ([]audio.AudioDevice, error) { return nil, nil }
func (b *fakeBackend) Close() error                             { return nil }

// queue scripts the next reads.
func (b *fakeBackend) queue(blocks ...[]byte) {
	for _, blk := range blocks {
		b.reads <- readResult{data: blk}
	}
}

func (b *fakeBackend) queueErr(err error) {
	b.reads <- readResult{err: err}
}

func (b *fakeBackend) stream(t *testing.T) *fakeStream {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		t.Fatal("no stream opened")
	}
	return b.streams[len(b.streams)-1]
}

type fakeStream struct {
	params audio.StreamParams
	reads  chan readResult

	mu          sync.Mutex
	mailbox     chan<- struct{}
	framePeriod int
	recording   bool
	stopped     chan struct{}
	starts      int
	stopsCalled int
	releases    int
}

func (s *fakeStream) SetPeriodicNotification(framePeriod int, mailbox chan<- struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framePeriod = framePeriod
	s.mailbox = mailbox
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.recording = true
	s.stopped = make(chan struct{})
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopsCalled++
	if s.recording {
		s.recording = false
		close(s.stopped)
	}
	return nil
}

func (s *fakeStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped == nil {
		return 0, audio.ErrStreamStopped
	}

	select {
	case r := <-s.reads:
		if r.err != nil {
			return 0, r.err
		}
		return copy(p, r.data), nil
	case <-stopped:
		return 0, audio.ErrStreamStopped
	}
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	s.mailbox = nil
	return nil
}

func (s *fakeStream) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *fakeStream) Overruns() int64 { return 0 }

// notify posts one periodic notification as the device would.
func (s *fakeStream) notify(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	mailbox := s.mailbox
	s.mu.Unlock()
	if mailbox == nil {
		t.Fatal("periodic notification not armed")
	}
	select {
	case mailbox <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("drain loop did not take the notification")
	}
}

func (s *fakeStream) counts() (starts, stops, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stopsCalled, s.releases
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errFlakyRead = errors.New("flaky read")
