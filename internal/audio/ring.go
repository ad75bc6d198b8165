package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// deviceControl is the backend-specific half of a stream. ringStream calls it
// outside its lock because device callbacks push into the ring.
type deviceControl interface {
	start() error
	stop() error
	release() error
}

// ringStream is the Stream shared by every backend. Device callbacks push
// captured bytes in, the drain side reads them out.
type ringStream struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf        []byte
	head       int // next byte to read
	size       int // bytes buffered
	frameBytes int

	periodBytes int
	sinceNotify int
	mailbox     chan<- struct{}

	recording bool
	released  bool
	overruns  atomic.Int64

	device deviceControl
}

func newRingStream(p StreamParams, device deviceControl) (*ringStream, error) {
	fb := p.FrameBytes()
	if fb <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size for %d channels at %d bits", ErrDeviceInit, p.Channels, p.BitsPerSample)
	}
	size := p.BufferSize - p.BufferSize%fb
	if size < fb {
		return nil, fmt.Errorf("%w: buffer size %d smaller than one frame", ErrDeviceInit, p.BufferSize)
	}
	s := &ringStream{
		buf:        make([]byte, size),
		frameBytes: fb,
		device:     device,
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (s *ringStream) SetPeriodicNotification(framePeriod int, mailbox chan<- struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodBytes = framePeriod * s.frameBytes
	s.sinceNotify = 0
	s.mailbox = mailbox
}

func (s *ringStream) Start() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return fmt.Errorf("%w: stream already released", ErrDeviceInit)
	}
	if s.recording {
		s.mu.Unlock()
		return nil
	}
	s.head, s.size, s.sinceNotify = 0, 0, 0
	s.recording = true
	s.mu.Unlock()

	if err := s.device.start(); err != nil {
		s.mu.Lock()
		s.recording = false
		s.cond.Broadcast()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *ringStream) Stop() error {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil
	}
	s.recording = false
	s.cond.Broadcast()
	s.mu.Unlock()

	return s.device.stop()
}

func (s *ringStream) Release() error {
	stopErr := s.Stop()

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return stopErr
	}
	s.released = true
	s.mailbox = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if err := s.device.release(); err != nil {
		return err
	}
	return stopErr
}

func (s *ringStream) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *ringStream) Overruns() int64 {
	return s.overruns.Load()
}

func (s *ringStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := min(len(p), len(s.buf))
	for s.size < want && s.recording {
		s.cond.Wait()
	}

	n := min(s.size, len(p))
	if n == 0 && len(p) > 0 {
		return 0, ErrStreamStopped
	}

	first := min(n, len(s.buf)-s.head)
	copy(p, s.buf[s.head:s.head+first])
	copy(p[first:n], s.buf[:n-first])
	s.head = (s.head + n) % len(s.buf)
	s.size -= n
	return n, nil
}

// push is called from the device callback with freshly captured bytes.
func (s *ringStream) push(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return
	}

	captured := len(p)
	space := len(s.buf) - s.size
	if len(p) > space {
		keep := space - space%s.frameBytes
		s.overruns.Add(int64(len(p) - keep))
		p = p[:keep]
	}

	tail := (s.head + s.size) % len(s.buf)
	first := min(len(p), len(s.buf)-tail)
	copy(s.buf[tail:], p[:first])
	copy(s.buf, p[first:])
	s.size += len(p)

	// Notifications follow captured frames, not buffered ones, so an
	// overrunning reader still gets woken at the configured period.
	if s.periodBytes > 0 && s.mailbox != nil {
		s.sinceNotify += captured
		for s.sinceNotify >= s.periodBytes {
			s.sinceNotify -= s.periodBytes
			select {
			case s.mailbox <- struct{}{}:
			default:
			}
		}
	}

	s.cond.Broadcast()
}
