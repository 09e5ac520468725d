package app

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func newTestFrame(seq uint64) *frame {
	m := gocv.NewMat()
	return &frame{seq: seq, mat: &m}
}

func TestFrameSlot_NewestWins(t *testing.T) {
	s := newFrameSlot()
	for seq := uint64(1); seq <= 3; seq++ {
		s.publish(newTestFrame(seq))
	}

	f := s.take()
	if f == nil || f.seq != 3 {
		t.Fatalf("take() = %+v, want seq 3", f)
	}
	f.mat.Close()

	if got := s.skips(); got != 2 {
		t.Errorf("skips() = %d, want 2", got)
	}
}

func TestFrameSlot_TakeBlocksUntilPublish(t *testing.T) {
	s := newFrameSlot()
	got := make(chan *frame)
	go func() { got <- s.take() }()

	select {
	case <-got:
		t.Fatal("take() returned before any publish")
	case <-time.After(20 * time.Millisecond):
	}

	s.publish(newTestFrame(7))
	select {
	case f := <-got:
		if f.seq != 7 {
			t.Errorf("take() seq = %d, want 7", f.seq)
		}
		f.mat.Close()
	case <-time.After(time.Second):
		t.Fatal("take() did not wake up after publish")
	}
}

func TestFrameSlot_Close(t *testing.T) {
	s := newFrameSlot()
	got := make(chan *frame)
	go func() { got <- s.take() }()

	time.Sleep(10 * time.Millisecond)
	s.close()

	select {
	case f := <-got:
		if f != nil {
			t.Errorf("take() after close = %+v, want nil", f)
		}
	case <-time.After(time.Second):
		t.Fatal("close() did not wake the consumer")
	}

	t.Run("publish after close is dropped", func(t *testing.T) {
		s.publish(newTestFrame(8))
		if s.take() != nil {
			t.Error("take() should keep returning nil once closed")
		}
		if s.skips() != 0 {
			t.Errorf("skips() = %d, want 0", s.skips())
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s.close()
	})
}

func TestFrameSlot_CloseDropsPending(t *testing.T) {
	s := newFrameSlot()
	s.publish(newTestFrame(1))
	s.close()
	if f := s.take(); f != nil {
		t.Errorf("take() = %+v, want nil", f)
	}
}
