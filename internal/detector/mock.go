package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/input"
)

// MockDetector is a test implementation of the Detector interface. It returns
// scripted observations in order and repeats the last one once the script
// runs out.
type MockDetector struct {
	mu     sync.Mutex
	script []input.RawObservation
	next   int
	err    error
	block  <-chan struct{}
	calls  int
	closed bool
}

// NewMockDetector creates a MockDetector that observes nothing.
func NewMockDetector(script ...input.RawObservation) *MockDetector {
	return &MockDetector{script: script}
}

// SetObservations replaces the script.
func (m *MockDetector) SetObservations(script ...input.RawObservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.next = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetBlock makes every Detect wait for a receive on ch before returning.
func (m *MockDetector) SetBlock(ch <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = ch
}

func (m *MockDetector) Detect(frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return Result{}, m.err
	}

	var obs input.RawObservation
	if len(m.script) > 0 {
		i := m.next
		if i >= len(m.script) {
			i = len(m.script) - 1
		} else {
			m.next++
		}
		obs = m.script[i]
	}

	var annotated gocv.Mat
	if frame != nil {
		annotated = frame.Clone()
	} else {
		annotated = gocv.NewMat()
	}
	return Result{Annotated: annotated, Observation: obs}, nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// EyesClosed is an observation of a centred face with both eyes closed.
func EyesClosed() input.RawObservation {
	return input.RawObservation{
		Face:         input.Some(input.Point{X: 0.5, Y: 0.5}),
		LeftEyeOpen:  input.Some(false),
		RightEyeOpen: input.Some(false),
	}
}

// EyesOpen is an observation of a centred face with both eyes open.
func EyesOpen() input.RawObservation {
	return input.RawObservation{
		Face:         input.Some(input.Point{X: 0.5, Y: 0.5}),
		LeftEyeOpen:  input.Some(true),
		RightEyeOpen: input.Some(true),
	}
}
