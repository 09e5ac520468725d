// Package app runs the mugshot pipeline: a camera acquisition loop feeding a
// detection loop that stabilizes observations and drives the pointer.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/actuator"
	"github.com/ayusman/mugshot/internal/capture"
	"github.com/ayusman/mugshot/internal/detector"
	"github.com/ayusman/mugshot/internal/input"
	"github.com/ayusman/mugshot/internal/logging"
	"github.com/ayusman/mugshot/internal/region"
)

// Pipeline timing defaults.
const (
	DefaultStallAfter  = 2 * time.Second
	DefaultReadBackoff = 50 * time.Millisecond
	DefaultStopTimeout = 2 * time.Second
)

// Journal event kinds.
const (
	EventStarted         = "started"
	EventStopped         = "stopped"
	EventEnabled         = "enabled"
	EventDisabled        = "disabled"
	EventDetectorReady   = "detector_ready"
	EventDetectorFailed  = "detector_failed"
	EventReadError       = "read_error"
	EventDetectError     = "detect_error"
	EventActuationHalted = "actuation_halted"
)

// Display receives each annotated frame. Show runs on the detection goroutine
// and must copy anything it keeps; the frame is closed after it returns.
type Display interface {
	Show(seq uint64, frame gocv.Mat)
}

// Journal records notable pipeline events.
type Journal interface {
	Record(kind string, seq uint64, detail string)
}

type nopJournal struct{}

func (nopJournal) Record(string, uint64, string) {}

// Config holds the collaborators and tunables of an App.
type Config struct {
	Camera   capture.Camera
	Detector detector.Factory
	Sink     actuator.Sink
	Display  Display
	Journal  Journal
	Logger   logrus.FieldLogger

	// MapArea, when set, is shared with the caller and Area is ignored.
	MapArea     *region.Store
	Area        region.Area
	Threshold   int
	ScrollStep  int
	StallAfter  time.Duration
	ReadBackoff time.Duration
	StopTimeout time.Duration
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Running              bool   `json:"running"`
	Enabled              bool   `json:"enabled"`
	DetectorReady        bool   `json:"detector_ready"`
	DetectorError        string `json:"detector_error,omitempty"`
	FeedStalled          bool   `json:"feed_stalled"`
	ActuationHalted      bool   `json:"actuation_halted"`
	Acquired             uint64 `json:"acquired"`
	Skipped              uint64 `json:"skipped"`
	Processed            uint64 `json:"processed"`
	ReadErrors           uint64 `json:"read_errors"`
	DetectErrors         uint64 `json:"detect_errors"`
	DroppedUninitialised uint64 `json:"dropped_uninitialised"`
	LastSeq              uint64 `json:"last_seq"`
}

// App owns the pipeline goroutines. SetEnabled, MapArea and Status are safe to
// call from any goroutine.
type App struct {
	cfg     Config
	log     logrus.FieldLogger
	journal Journal
	area    *region.Store
	machine *actuator.Machine

	haltReported atomic.Bool

	mu  sync.Mutex
	run *run

	// applyMu orders actuation against Stop.
	applyMu sync.Mutex
}

// New creates an App. The camera, detector factory and sink are required.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil || cfg.Detector == nil || cfg.Sink == nil {
		return nil, errors.New("app: camera, detector and sink are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Journal == nil {
		cfg.Journal = nopJournal{}
	}
	if cfg.StallAfter <= 0 {
		cfg.StallAfter = DefaultStallAfter
	}
	if cfg.ReadBackoff <= 0 {
		cfg.ReadBackoff = DefaultReadBackoff
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = input.DefaultConsecFrames
	}

	area := cfg.MapArea
	if area == nil {
		area = region.NewStore(cfg.Area)
	}
	a := &App{
		cfg:     cfg,
		log:     cfg.Logger,
		journal: cfg.Journal,
		area:    area,
	}
	a.machine = actuator.NewMachine(cfg.Sink, area,
		actuator.WithScrollStep(cfg.ScrollStep),
		actuator.WithLogger(cfg.Logger.WithField(logging.FieldStage, "actuate")),
	)
	return a, nil
}

// Start opens the camera and launches acquisition, detection and detector
// initialisation. Calling Start on a running App is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.run != nil {
		return nil
	}

	if err := a.cfg.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r := newRun(cancel, a.cfg.Threshold)
	a.run = r

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.acquire(ctx, r)
	}()
	go func() {
		defer wg.Done()
		a.detect(r)
	}()
	go a.initDetector(r)
	go func() {
		wg.Wait()
		close(r.done)
	}()
	// The slot is closed on cancellation so the detection loop wakes up.
	go func() {
		<-ctx.Done()
		r.slot.close()
	}()

	a.log.Info("pipeline started")
	a.journal.Record(EventStarted, 0, "")
	return nil
}

// Stop cancels the pipeline, releases held buttons and waits a bounded time for
// the goroutines to let go of the camera and detector. Frames in flight are
// abandoned.
func (a *App) Stop() {
	a.mu.Lock()
	r := a.run
	a.run = nil
	a.mu.Unlock()

	if r == nil {
		return
	}

	// A detection goroutine abandoned below must not actuate after Stop returns.
	a.applyMu.Lock()
	r.stopped = true
	a.applyMu.Unlock()

	r.cancel()
	if err := a.machine.SetEnabled(false); err != nil {
		a.log.WithError(err).Warn("release buttons on stop")
	}

	select {
	case <-r.done:
	case <-time.After(a.cfg.StopTimeout):
		a.log.WithField("timeout", a.cfg.StopTimeout).Warn("pipeline still busy, abandoning in-flight frame")
	}

	a.log.Info("pipeline stopped")
	a.journal.Record(EventStopped, r.lastSeq.Load(), "")
}

// SetEnabled toggles actuation. Disabling releases any held button before it
// returns.
func (a *App) SetEnabled(enabled bool) error {
	was := a.machine.Enabled()
	err := a.machine.SetEnabled(enabled)
	if was != enabled {
		kind := EventDisabled
		if enabled {
			kind = EventEnabled
		}
		a.journal.Record(kind, 0, "")
	}
	return err
}

// Enabled reports whether actuation is on.
func (a *App) Enabled() bool {
	return a.machine.Enabled()
}

// MapArea returns the shared map area store.
func (a *App) MapArea() *region.Store {
	return a.area
}

// Buttons returns the current button state.
func (a *App) Buttons() actuator.State {
	return a.machine.State()
}

// Status returns a snapshot of the pipeline.
func (a *App) Status() Status {
	a.mu.Lock()
	r := a.run
	a.mu.Unlock()

	s := Status{
		Enabled:         a.machine.Enabled(),
		ActuationHalted: a.machine.Fault() != nil,
	}
	if r == nil {
		return s
	}

	s.Running = true
	s.Acquired = r.acquired.Load()
	s.Skipped = r.slot.skips()
	s.Processed = r.processed.Load()
	s.ReadErrors = r.readErrors.Load()
	s.DetectErrors = r.detectErrors.Load()
	s.DroppedUninitialised = r.dropped.Load()
	s.LastSeq = r.lastSeq.Load()
	s.FeedStalled = time.Since(time.Unix(0, r.lastFrame.Load())) > a.cfg.StallAfter

	d, err := r.detectorState()
	s.DetectorReady = d != nil
	if err != nil {
		s.DetectorError = err.Error()
	}
	return s
}

// run is the state of one Start/Stop cycle.
type run struct {
	cancel context.CancelFunc
	slot   *frameSlot
	done   chan struct{}
	// stab lives as long as the run's detector session.
	stab *input.Stabilizer
	// stopped is guarded by App.applyMu.
	stopped bool

	acquired     atomic.Uint64
	processed    atomic.Uint64
	readErrors   atomic.Uint64
	detectErrors atomic.Uint64
	dropped      atomic.Uint64
	lastSeq      atomic.Uint64
	lastFrame    atomic.Int64

	mu       sync.Mutex
	det      detector.Detector
	detErr   error
	finished bool
}

func newRun(cancel context.CancelFunc, threshold int) *run {
	r := &run{
		cancel: cancel,
		slot:   newFrameSlot(),
		done:   make(chan struct{}),
		stab:   input.NewStabilizer(threshold),
	}
	r.lastFrame.Store(time.Now().UnixNano())
	return r
}

func (r *run) detectorState() (detector.Detector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.det, r.detErr
}

// install hands a freshly built detector to the run. It reports false, and
// the caller must close d, when the detection loop has already exited.
func (r *run) install(d detector.Detector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.det = d
	return true
}

// finish marks the detection loop as gone and returns the detector to close.
func (r *run) finish() detector.Detector {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
	d := r.det
	r.det = nil
	return d
}
