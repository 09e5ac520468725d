package app

import (
	"sync"

	"gocv.io/x/gocv"
)

type frame struct {
	seq uint64
	mat *gocv.Mat
}

// frameSlot is a depth-1 mailbox between acquisition and detection. A publish
// replaces any pending frame, so the consumer always takes the newest one.
type frameSlot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *frame
	closed  bool
	skipped uint64
}

func newFrameSlot() *frameSlot {
	s := &frameSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// publish stores f without blocking. A replaced frame is closed and counted
// as skipped. After close, f is closed immediately.
func (s *frameSlot) publish(f *frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		f.mat.Close()
		return
	}
	if s.pending != nil {
		s.pending.mat.Close()
		s.skipped++
	}
	s.pending = f
	s.cond.Signal()
}

// take blocks until a frame is pending or the slot is closed, in which case
// it returns nil. Single consumer only.
func (s *frameSlot) take() *frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.pending == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil
	}
	f := s.pending
	s.pending = nil
	return f
}

// close wakes the consumer and drops the pending frame. Idempotent.
func (s *frameSlot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.pending != nil {
		s.pending.mat.Close()
		s.pending = nil
	}
	s.cond.Broadcast()
}

func (s *frameSlot) skips() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}
