package actuator

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mugshot/internal/input"
	"github.com/ayusman/mugshot/internal/logging"
	"github.com/ayusman/mugshot/internal/region"
)

// DefaultScrollStep is the scroll amount issued per frame while the tongue is tracked.
const DefaultScrollStep = 100

// ErrActuationHalted is returned once the sink has failed. The machine issues no
// further calls after that.
var ErrActuationHalted = errors.New("actuation halted")

// AreaSource supplies the current map area.
type AreaSource interface {
	Load() region.Area
}

// State mirrors the last button calls that reached the sink.
type State struct {
	LeftDown  bool `json:"left_down"`
	RightDown bool `json:"right_down"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithScrollStep sets the scroll magnitude. Values <= 0 are ignored.
func WithScrollStep(step int) Option {
	return func(m *Machine) {
		if step > 0 {
			m.scrollStep = step
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// Machine is the single writer of button state. It is safe for concurrent use:
// Apply runs on the detection goroutine while SetEnabled runs on UI goroutines,
// and both are serialized.
type Machine struct {
	sink       Sink
	area       AreaSource
	scrollStep int
	log        logrus.FieldLogger

	mu      sync.Mutex
	enabled bool
	state   State
	fault   error
}

// NewMachine creates a disabled Machine driving sink.
func NewMachine(sink Sink, area AreaSource, opts ...Option) *Machine {
	m := &Machine{
		sink:       sink,
		area:       area,
		scrollStep: DefaultScrollStep,
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply issues the actions for one frame. It does nothing while disabled.
//
// Buttons follow an Up/Down state machine: only a present closed=true while Up
// presses, only a present closed=false while Down releases. Cursor moves and
// scrolls are issued on every present value.
func (m *Machine) Apply(in input.FrameInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fault != nil {
		return m.fault
	}
	if !m.enabled {
		return nil
	}

	if err := m.drive(Left, &m.state.LeftDown, in.LeftEyeClosed); err != nil {
		return m.halt(err)
	}
	if err := m.drive(Right, &m.state.RightDown, in.RightEyeClosed); err != nil {
		return m.halt(err)
	}

	if p, ok := in.Cursor.Get(); ok {
		w, h := m.sink.ScreenSize()
		screen := image.Pt(w, h)
		target := region.Clamp(m.area.Load().Map(p, screen), screen)
		if err := m.sink.MoveTo(target.X, target.Y); err != nil {
			return m.halt(fmt.Errorf("move to %v: %w", target, err))
		}
	}

	if down, ok := in.TongueDown.Get(); ok {
		delta := m.scrollStep
		if down {
			delta = -delta
		}
		if err := m.sink.Scroll(delta); err != nil {
			return m.halt(fmt.Errorf("scroll %d: %w", delta, err))
		}
	}

	return nil
}

// SetEnabled toggles actuation. Disabling releases every held button before
// returning, whatever the latest frame said.
func (m *Machine) SetEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled == enabled {
		return nil
	}
	m.enabled = enabled
	m.log.WithField("enabled", enabled).Info("actuation toggled")

	if enabled || m.fault != nil {
		return m.fault
	}
	if err := m.drive(Left, &m.state.LeftDown, input.Some(false)); err != nil {
		return m.halt(err)
	}
	if err := m.drive(Right, &m.state.RightDown, input.Some(false)); err != nil {
		return m.halt(err)
	}
	return nil
}

// Enabled reports whether actuation is on.
func (m *Machine) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// State returns the current button state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fault returns the sink failure that halted actuation, if any.
func (m *Machine) Fault() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fault
}

// drive applies one row of the button transition table.
func (m *Machine) drive(b Button, down *bool, closed input.Optional[bool]) error {
	isClosed, ok := closed.Get()
	if !ok || isClosed == *down {
		return nil
	}

	if isClosed {
		if err := m.sink.ButtonDown(b); err != nil {
			return fmt.Errorf("%s down: %w", b, err)
		}
	} else {
		if err := m.sink.ButtonUp(b); err != nil {
			return fmt.Errorf("%s up: %w", b, err)
		}
	}
	*down = isClosed
	return nil
}

// halt records a sink failure. Callers hold mu.
func (m *Machine) halt(err error) error {
	m.fault = fmt.Errorf("%w: %w", ErrActuationHalted, err)
	m.log.WithError(err).Error("input sink failed, actuation halted")
	return m.fault
}
