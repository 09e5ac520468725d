package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mugshot/internal/actuator"
	"github.com/ayusman/mugshot/internal/input"
	"github.com/ayusman/mugshot/internal/logging"
)

// acquire owns the camera. It reads as fast as the device delivers and never
// waits on detection.
func (a *App) acquire(ctx context.Context, r *run) {
	log := a.log.WithField(logging.FieldStage, "acquire")
	defer func() {
		if err := a.cfg.Camera.Close(); err != nil {
			log.WithError(err).Warn("close camera")
		}
	}()

	var (
		seq     uint64
		failing bool
	)
	for ctx.Err() == nil {
		mat, err := a.cfg.Camera.ReadFrame()
		if err != nil {
			r.readErrors.Add(1)
			entry := log.WithField(logging.FieldSeq, seq+1).WithError(err)
			if !failing {
				entry.Warn("frame read failed, retrying")
				a.journal.Record(EventReadError, seq+1, err.Error())
				failing = true
			} else {
				entry.Debug("frame read failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(a.cfg.ReadBackoff):
			}
			continue
		}

		if failing {
			log.WithField(logging.FieldSeq, seq+1).Info("frame reads recovered")
			failing = false
		}
		if ctx.Err() != nil {
			mat.Close()
			return
		}

		seq++
		r.acquired.Add(1)
		r.lastFrame.Store(time.Now().UnixNano())
		r.slot.publish(&frame{seq: seq, mat: mat})
	}
}

// detect owns the detector and the stabilizer. Frames are handled strictly in
// the order they are taken from the slot.
func (a *App) detect(r *run) {
	defer func() {
		if d := r.finish(); d != nil {
			if err := d.Close(); err != nil {
				a.log.WithError(err).Warn("close detector")
			}
		}
	}()

	for {
		f := r.slot.take()
		if f == nil {
			return
		}
		a.process(r, f)
	}
}

func (a *App) process(r *run, f *frame) {
	defer f.mat.Close()
	log := a.log.WithFields(logrus.Fields{
		logging.FieldStage: "detect",
		logging.FieldSeq:   f.seq,
	})

	d, _ := r.detectorState()
	if d == nil {
		r.dropped.Add(1)
		log.Debug("detection unavailable, frame dropped")
		return
	}

	res, err := d.Detect(f.mat)
	if err != nil {
		r.detectErrors.Add(1)
		log.WithError(err).Warn("detection failed, frame skipped")
		a.journal.Record(EventDetectError, f.seq, err.Error())
		return
	}
	defer res.Annotated.Close()

	if !a.actuate(r, f.seq, res.Observation) {
		log.Debug("run stopped during detection, frame abandoned")
		return
	}

	r.processed.Add(1)
	r.lastSeq.Store(f.seq)

	if a.cfg.Display != nil {
		a.cfg.Display.Show(f.seq, res.Annotated)
	}
}

// actuate stabilizes obs and applies it. It reports false once the run has
// been stopped.
func (a *App) actuate(r *run, seq uint64, obs input.RawObservation) bool {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	if r.stopped {
		return false
	}
	in := r.stab.Stabilize(obs)
	if err := a.machine.Apply(in); errors.Is(err, actuator.ErrActuationHalted) {
		if a.haltReported.CompareAndSwap(false, true) {
			a.journal.Record(EventActuationHalted, seq, err.Error())
		}
	}
	return true
}

// initDetector builds the detector off the pipeline goroutines. Until it
// completes every frame is dropped.
func (a *App) initDetector(r *run) {
	log := a.log.WithField(logging.FieldStage, "init")
	start := time.Now()

	d, err := a.cfg.Detector()
	if err != nil {
		r.mu.Lock()
		r.detErr = err
		r.mu.Unlock()
		log.WithError(err).Error("detector initialisation failed, detection unavailable")
		a.journal.Record(EventDetectorFailed, 0, err.Error())
		return
	}

	if !r.install(d) {
		d.Close()
		return
	}
	log.WithField("took", time.Since(start).Round(time.Millisecond)).Info("detector ready")
	a.journal.Record(EventDetectorReady, 0, "")
}
