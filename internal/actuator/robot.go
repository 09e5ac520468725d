package actuator

import "github.com/go-vgo/robotgo"

// RobotSink drives the real pointer through robotgo.
type RobotSink struct{}

// NewRobotSink creates a RobotSink.
func NewRobotSink() *RobotSink {
	return &RobotSink{}
}

func (s *RobotSink) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (s *RobotSink) ButtonDown(b Button) error {
	return robotgo.Toggle(b.String())
}

func (s *RobotSink) ButtonUp(b Button) error {
	return robotgo.Toggle(b.String(), "up")
}

// Scroll scrolls vertically; positive deltas scroll up.
func (s *RobotSink) Scroll(delta int) error {
	robotgo.Scroll(0, delta)
	return nil
}

func (s *RobotSink) ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}
