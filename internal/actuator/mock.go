package actuator

import (
	"fmt"
	"sync"
)

// CallKind names a Sink method.
type CallKind string

const (
	CallMove   CallKind = "move"
	CallDown   CallKind = "down"
	CallUp     CallKind = "up"
	CallScroll CallKind = "scroll"
)

// Call is one recorded Sink invocation.
type Call struct {
	Kind   CallKind
	Button Button
	X, Y   int
	Delta  int
}

func (c Call) String() string {
	switch c.Kind {
	case CallMove:
		return fmt.Sprintf("move(%d,%d)", c.X, c.Y)
	case CallScroll:
		return fmt.Sprintf("scroll(%d)", c.Delta)
	default:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Button)
	}
}

// MockSink is a test implementation of Sink that records every call.
type MockSink struct {
	mu     sync.Mutex
	width  int
	height int
	calls  []Call
	failOn CallKind
	err    error
}

// NewMockSink creates a MockSink reporting a width×height screen.
func NewMockSink(width, height int) *MockSink {
	return &MockSink{width: width, height: height}
}

// FailOn makes every subsequent call of kind return err.
func (m *MockSink) FailOn(kind CallKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = kind
	m.err = err
}

// Calls returns a copy of the recorded calls.
func (m *MockSink) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (m *MockSink) CallsOf(kind CallKind) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockSink) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil && m.failOn == c.Kind {
		return m.err
	}
	m.calls = append(m.calls, c)
	return nil
}

func (m *MockSink) MoveTo(x, y int) error {
	return m.record(Call{Kind: CallMove, X: x, Y: y})
}

func (m *MockSink) ButtonDown(b Button) error {
	return m.record(Call{Kind: CallDown, Button: b})
}

func (m *MockSink) ButtonUp(b Button) error {
	return m.record(Call{Kind: CallUp, Button: b})
}

func (m *MockSink) Scroll(delta int) error {
	return m.record(Call{Kind: CallScroll, Delta: delta})
}

func (m *MockSink) ScreenSize() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}
