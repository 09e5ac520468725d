package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/actuator"
	"github.com/ayusman/mugshot/internal/capture"
	"github.com/ayusman/mugshot/internal/detector"
	"github.com/ayusman/mugshot/internal/input"
	"github.com/ayusman/mugshot/internal/region"
)

type recordingDisplay struct {
	mu   sync.Mutex
	seqs []uint64
}

func (d *recordingDisplay) Show(seq uint64, _ gocv.Mat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seqs = append(d.seqs, seq)
}

func (d *recordingDisplay) shown() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.seqs...)
}

type recordingJournal struct {
	mu    sync.Mutex
	kinds []string
}

func (j *recordingJournal) Record(kind string, _ uint64, _ string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.kinds = append(j.kinds, kind)
}

func (j *recordingJournal) count(kind string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, k := range j.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type harness struct {
	app     *App
	camera  *capture.MockCamera
	sink    *actuator.MockSink
	display *recordingDisplay
	journal *recordingJournal
}

func staticFactory(d detector.Detector) detector.Factory {
	return func() (detector.Detector, error) { return d, nil }
}

func newHarness(t *testing.T, factory detector.Factory, tweak ...func(*Config)) *harness {
	t.Helper()

	mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	h := &harness{
		camera:  capture.NewMockCamera([]*gocv.Mat{&mat}, true),
		sink:    actuator.NewMockSink(1000, 1000),
		display: &recordingDisplay{},
		journal: &recordingJournal{},
	}
	h.camera.SetDelay(time.Millisecond)

	cfg := Config{
		Camera:      h.camera,
		Detector:    factory,
		Sink:        h.sink,
		Display:     h.display,
		Journal:     h.journal,
		ReadBackoff: 5 * time.Millisecond,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.app = a
	t.Cleanup(a.Stop)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func leftEyeOpen(open bool) input.RawObservation {
	return input.RawObservation{LeftEyeOpen: input.Some(open)}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with no collaborators should fail")
	}
}

func TestApp_SkipsStaleFramesInOrder(t *testing.T) {
	det := detector.NewMockDetector()
	release := make(chan struct{})
	det.SetBlock(release)

	h := newHarness(t, staticFactory(det))
	h.start(t)
	waitFor(t, "detector ready", func() bool { return h.app.Status().DetectorReady })

	const rounds = 5
	for i := 0; i < rounds; i++ {
		time.Sleep(20 * time.Millisecond)
		release <- struct{}{}
		waitFor(t, "frame shown", func() bool { return len(h.display.shown()) == i+1 })
	}

	status := h.app.Status()
	close(release)

	seqs := h.display.shown()
	gap := false
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("frames processed out of order: %v", seqs)
		}
		if seqs[i]-seqs[i-1] > 1 {
			gap = true
		}
	}
	if !gap {
		t.Errorf("expected stale frames to be skipped, processed %v", seqs)
	}
	if status.Skipped == 0 {
		t.Error("Status().Skipped = 0, want > 0")
	}
	if status.Acquired <= status.Processed {
		t.Errorf("Acquired = %d, Processed = %d; acquisition should run ahead", status.Acquired, status.Processed)
	}
}

func TestApp_DropsFramesUntilDetectorReady(t *testing.T) {
	gate := make(chan struct{})
	det := detector.NewMockDetector()
	factory := func() (detector.Detector, error) {
		<-gate
		return det, nil
	}

	h := newHarness(t, factory)
	h.start(t)

	waitFor(t, "dropped frames", func() bool { return h.app.Status().DroppedUninitialised >= 3 })
	s := h.app.Status()
	if s.DetectorReady || s.Processed != 0 || det.Calls() != 0 {
		t.Fatalf("frames processed before detector ready: %+v", s)
	}

	close(gate)
	waitFor(t, "processed frames", func() bool { return h.app.Status().Processed > 0 })
	if h.journal.count(EventDetectorReady) != 1 {
		t.Errorf("detector_ready journaled %d times, want 1", h.journal.count(EventDetectorReady))
	}
}

func TestApp_DetectorInitFailure(t *testing.T) {
	boom := errors.New("cascade missing")
	h := newHarness(t, func() (detector.Detector, error) { return nil, boom })
	h.app.SetEnabled(true)
	h.start(t)

	waitFor(t, "detector error", func() bool { return h.app.Status().DetectorError != "" })
	waitFor(t, "dropped frames", func() bool { return h.app.Status().DroppedUninitialised >= 2 })

	s := h.app.Status()
	if s.DetectorReady {
		t.Error("DetectorReady should be false after init failure")
	}
	if !s.Running {
		t.Error("pipeline should keep running without a detector")
	}
	if calls := h.sink.Calls(); len(calls) != 0 {
		t.Errorf("sink calls = %v, want none", calls)
	}
	if h.journal.count(EventDetectorFailed) != 1 {
		t.Errorf("detector_failed journaled %d times, want 1", h.journal.count(EventDetectorFailed))
	}
}

func TestApp_ClosedEyeClicksOnce(t *testing.T) {
	det := detector.NewMockDetector(
		leftEyeOpen(false), leftEyeOpen(false), leftEyeOpen(false), leftEyeOpen(true),
	)
	h := newHarness(t, staticFactory(det))
	h.app.SetEnabled(true)
	h.start(t)

	waitFor(t, "processed frames", func() bool { return h.app.Status().Processed >= 8 })

	want := []actuator.Call{
		{Kind: actuator.CallDown, Button: actuator.Left},
		{Kind: actuator.CallUp, Button: actuator.Left},
	}
	got := h.sink.Calls()
	if len(got) != len(want) {
		t.Fatalf("sink calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestApp_DisableReleasesHeldButtons(t *testing.T) {
	det := detector.NewMockDetector(detector.EyesClosed())
	h := newHarness(t, staticFactory(det))
	h.app.SetEnabled(true)
	h.start(t)

	waitFor(t, "both buttons down", func() bool {
		return len(h.sink.CallsOf(actuator.CallDown)) == 2
	})

	if err := h.app.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if ups := h.sink.CallsOf(actuator.CallUp); len(ups) != 2 {
		t.Fatalf("up calls = %v, want left and right", ups)
	}
	if b := h.app.Buttons(); b.LeftDown || b.RightDown {
		t.Errorf("Buttons() = %+v, want all up", b)
	}

	before := len(h.sink.Calls())
	processed := h.app.Status().Processed
	waitFor(t, "more frames", func() bool { return h.app.Status().Processed >= processed+3 })
	if after := len(h.sink.Calls()); after != before {
		t.Errorf("sink received %d calls while disabled", after-before)
	}
	if h.journal.count(EventDisabled) != 1 {
		t.Errorf("disabled journaled %d times, want 1", h.journal.count(EventDisabled))
	}
}

func TestApp_ReadErrorsAreRetried(t *testing.T) {
	det := detector.NewMockDetector()
	h := newHarness(t, staticFactory(det))
	glitch := errors.New("usb glitch")
	h.camera.FailRead(1, glitch)
	h.camera.FailRead(2, glitch)
	h.start(t)

	waitFor(t, "processed frames", func() bool { return h.app.Status().Processed > 0 })

	if got := h.app.Status().ReadErrors; got != 2 {
		t.Errorf("ReadErrors = %d, want 2", got)
	}
	if got := h.journal.count(EventReadError); got != 1 {
		t.Errorf("read_error journaled %d times, want 1 per failure streak", got)
	}
}

func TestApp_DetectErrorSkipsFrame(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetError(errors.New("bad frame"))
	h := newHarness(t, staticFactory(det))
	h.start(t)

	waitFor(t, "detect errors", func() bool { return h.app.Status().DetectErrors >= 2 })
	if s := h.app.Status(); s.Processed != 0 {
		t.Errorf("Processed = %d, want 0", s.Processed)
	}
	if len(h.display.shown()) != 0 {
		t.Error("failed frames must not reach the display")
	}
}

func TestApp_SinkFailureHaltsActuation(t *testing.T) {
	det := detector.NewMockDetector(detector.EyesOpen())
	h := newHarness(t, staticFactory(det))
	h.sink.FailOn(actuator.CallMove, errors.New("display gone"))
	h.app.SetEnabled(true)
	h.start(t)

	waitFor(t, "actuation halted", func() bool { return h.app.Status().ActuationHalted })
	processed := h.app.Status().Processed
	waitFor(t, "more frames", func() bool { return h.app.Status().Processed >= processed+3 })

	if !h.app.Status().Running {
		t.Error("pipeline should keep running after a sink failure")
	}
	if got := h.journal.count(EventActuationHalted); got != 1 {
		t.Errorf("actuation_halted journaled %d times, want 1", got)
	}
}

func TestApp_FeedStalled(t *testing.T) {
	h := newHarness(t, staticFactory(detector.NewMockDetector()), func(c *Config) {
		c.Camera = capture.NewMockCamera(nil, true)
		c.StallAfter = 30 * time.Millisecond
	})
	h.start(t)

	waitFor(t, "feed stalled", func() bool { return h.app.Status().FeedStalled })
	if s := h.app.Status(); s.Acquired != 0 || s.ReadErrors == 0 {
		t.Errorf("Status() = %+v, want only read errors", s)
	}
}

func TestApp_StartStop(t *testing.T) {
	det := detector.NewMockDetector()
	h := newHarness(t, staticFactory(det))
	h.start(t)
	h.start(t) // second Start is a no-op

	waitFor(t, "processed frames", func() bool { return h.app.Status().Processed > 0 })
	h.app.Stop()

	if h.camera.IsOpen() {
		t.Error("camera should be closed after Stop")
	}
	if !det.Closed() {
		t.Error("detector should be closed after Stop")
	}
	if h.app.Status().Running {
		t.Error("Status().Running should be false after Stop")
	}
	h.app.Stop()

	t.Run("restart", func(t *testing.T) {
		h.start(t)
		waitFor(t, "processed frames after restart", func() bool { return h.app.Status().Processed > 0 })
	})
}

func TestApp_StopIsBounded(t *testing.T) {
	det := detector.NewMockDetector()
	release := make(chan struct{})
	det.SetBlock(release)

	h := newHarness(t, staticFactory(det), func(c *Config) { c.StopTimeout = 50 * time.Millisecond })
	h.start(t)
	waitFor(t, "detector ready", func() bool { return h.app.Status().DetectorReady })
	waitFor(t, "detect in flight", func() bool { return h.app.Status().Acquired > 2 })

	start := time.Now()
	h.app.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop() took %v with a stuck detector", elapsed)
	}

	close(release)
	waitFor(t, "detector closed", det.Closed)
}

func TestApp_AbandonedDetectionDoesNotActuateAfterRestart(t *testing.T) {
	release := make(chan struct{})
	stale := detector.NewMockDetector(detector.EyesOpen())
	stale.SetBlock(release)
	fresh := detector.NewMockDetector(detector.EyesClosed())

	var mu sync.Mutex
	built := 0
	factory := func() (detector.Detector, error) {
		mu.Lock()
		defer mu.Unlock()
		built++
		if built == 1 {
			return stale, nil
		}
		return fresh, nil
	}

	h := newHarness(t, factory, func(c *Config) { c.StopTimeout = 50 * time.Millisecond })
	h.start(t)
	waitFor(t, "stale detector ready", func() bool { return h.app.Status().DetectorReady })
	waitFor(t, "detect in flight", func() bool { return h.app.Status().Acquired > 2 })

	h.app.Stop()

	h.start(t)
	h.app.SetEnabled(true)
	waitFor(t, "both buttons down", func() bool {
		b := h.app.Buttons()
		return b.LeftDown && b.RightDown
	})

	// The stale frame reports open eyes, which would release both buttons.
	close(release)
	waitFor(t, "stale detector closed", stale.Closed)
	time.Sleep(20 * time.Millisecond)

	if ups := h.sink.CallsOf(actuator.CallUp); len(ups) != 0 {
		t.Errorf("button up calls after restart = %v, want none", ups)
	}
	if b := h.app.Buttons(); !b.LeftDown || !b.RightDown {
		t.Errorf("Buttons() = %+v, want both held", b)
	}
}

func TestApp_MapAreaShared(t *testing.T) {
	det := detector.NewMockDetector(input.RawObservation{Face: input.Some(input.Point{X: 0.5, Y: 0.5})})
	h := newHarness(t, staticFactory(det))
	h.app.SetEnabled(true)

	if got := h.app.MapArea().Load(); got.X1 != 0 || got.X2 != 1 {
		t.Fatalf("default area = %+v, want full frame", got)
	}

	area := h.app.MapArea().Load()
	area.X1, area.Y1 = 0.5, 0.5
	if err := h.app.MapArea().Update(area); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	h.start(t)

	waitFor(t, "cursor moves", func() bool { return len(h.sink.CallsOf(actuator.CallMove)) > 0 })
	if mv := h.sink.CallsOf(actuator.CallMove)[0]; mv.X != 1 || mv.Y != 1 {
		t.Errorf("first move = %v, want clamped (1,1)", mv)
	}
}

func TestApp_UsesCallerMapAreaStore(t *testing.T) {
	shared := region.NewStore(region.Full())
	det := detector.NewMockDetector()
	h := newHarness(t, staticFactory(det), func(c *Config) { c.MapArea = shared })

	if h.app.MapArea() != shared {
		t.Fatal("MapArea() should return the caller's store")
	}
}
