// Package input defines the per-frame observation types and turns noisy detector
// output into stable signals that can drive the mouse.
package input

import "fmt"

// Optional holds a value that may be absent for a frame.
// An absent value means "not observed" and is distinct from the zero value.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

func (o Optional[T]) String() string {
	if !o.Valid {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.Value)
}

// Point is a normalized frame-local position in [0,1]².
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tongue is a tongue detection inside the face region.
type Tongue struct {
	Down        bool    `json:"down"`
	AspectRatio float64 `json:"aspect_ratio"` // box height / width
}

// RawObservation is what a detector reports for a single frame.
type RawObservation struct {
	Face         Optional[Point]
	LeftEyeOpen  Optional[bool]
	RightEyeOpen Optional[bool]
	Tongue       Optional[Tongue]
}

// FrameInput is the stabilized per-frame signal set consumed by the actuator.
// Downstream logic only acts on present values.
type FrameInput struct {
	LeftEyeClosed  Optional[bool]
	RightEyeClosed Optional[bool]
	Cursor         Optional[Point]
	TongueDown     Optional[bool]
}
