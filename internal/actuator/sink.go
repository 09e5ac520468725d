// Package actuator turns stabilized frame signals into mouse actions and
// guarantees that the OS never sees a redundant button transition.
package actuator

import "fmt"

// Button identifies a mouse button.
type Button int

const (
	Left Button = iota
	Right
)

// String returns the button name as used by input injection libraries.
func (b Button) String() string {
	switch b {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// Sink injects pointer actions into the OS. Calls are fire-and-forget; an error
// means the input channel is broken.
type Sink interface {
	MoveTo(x, y int) error
	ButtonDown(b Button) error
	ButtonUp(b Button) error
	Scroll(delta int) error
	ScreenSize() (width, height int)
}
