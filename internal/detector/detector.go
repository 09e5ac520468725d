// Package detector turns camera frames into raw face observations: where the
// face is, which eyes are visible and whether the tongue points down.
package detector

import (
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/input"
)

var (
	// ErrModelNotFound is returned when a cascade or model file is missing.
	ErrModelNotFound = errors.New("model file not found")
	// ErrUnknownKind is returned by NewFactory for an unsupported detector kind.
	ErrUnknownKind = errors.New("unknown detector kind")
)

// Result is the outcome of one Detect call.
type Result struct {
	// Annotated is a copy of the input frame with detections drawn on it.
	// It is always a valid Mat and the caller must close it.
	Annotated   gocv.Mat
	Observation input.RawObservation
}

// Detector analyses a single BGR frame. Implementations are used from one
// goroutine at a time.
type Detector interface {
	Detect(frame *gocv.Mat) (Result, error)
	Close() error
}

// Kind selects a Detector implementation.
type Kind string

const (
	KindHaar     Kind = "haar"
	KindLandmark Kind = "landmark"
)

// Config holds model locations and thresholds shared by the detectors.
type Config struct {
	FaceCascade string
	EyeCascade  string
	// TongueModel is an optional YOLO ONNX model. Without it no tongue is reported.
	TongueModel string
	// LandmarkService is the command line of the face landmark service.
	LandmarkService string

	// EyeOpenEAR is the eye aspect ratio at or above which an eye counts as open.
	EyeOpenEAR float64
	// MinEyeWidth drops eye boxes narrower than this fraction of the face width.
	MinEyeWidth float64
	// Confidence is the minimum tongue detection score.
	Confidence float32
}

// DefaultConfig returns a Config with the default thresholds and no model paths.
func DefaultConfig() Config {
	return Config{
		EyeOpenEAR:  0.45,
		MinEyeWidth: 0.2,
		Confidence:  0.5,
	}
}

// Factory builds a ready Detector. It may be slow: models are loaded and
// services started before it returns.
type Factory func() (Detector, error)

// NewFactory returns a Factory for kind.
func NewFactory(kind Kind, cfg Config) (Factory, error) {
	switch kind {
	case KindHaar:
		return func() (Detector, error) {
			d, err := NewHaarDetector(cfg)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	case KindLandmark:
		return func() (Detector, error) {
			d, err := NewLandmarkDetector(cfg)
			if err != nil {
				return nil, err
			}
			return d, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no path configured", ErrModelNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	return nil
}
