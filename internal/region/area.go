// Package region maps a normalized sub-rectangle of the camera frame onto the screen.
package region

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ayusman/mugshot/internal/input"
)

// EdgeInset keeps the cursor this many pixels away from every screen edge.
const EdgeInset = 1

// ErrDegenerateArea is returned for rectangles with zero or negative extent
// or coordinates outside [0,1].
var ErrDegenerateArea = errors.New("degenerate map area")

// Area is a normalized rectangle of the frame that is stretched onto the full screen.
// Values are only valid when built through New or Full.
type Area struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// New validates and returns an Area.
// It requires 0 <= x1 < x2 <= 1 and 0 <= y1 < y2 <= 1.
func New(x1, y1, x2, y2 float64) (Area, error) {
	a := Area{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if err := a.Validate(); err != nil {
		return Area{}, err
	}
	return a, nil
}

// Full returns the area covering the whole frame.
func Full() Area {
	return Area{X1: 0, Y1: 0, X2: 1, Y2: 1}
}

// Validate reports whether the area is a non-degenerate rectangle inside the unit square.
func (a Area) Validate() error {
	// Negated comparisons also reject NaN.
	if !(a.X1 >= 0 && a.X1 < a.X2 && a.X2 <= 1) {
		return fmt.Errorf("%w: x1=%g x2=%g", ErrDegenerateArea, a.X1, a.X2)
	}
	if !(a.Y1 >= 0 && a.Y1 < a.Y2 && a.Y2 <= 1) {
		return fmt.Errorf("%w: y1=%g y2=%g", ErrDegenerateArea, a.Y1, a.Y2)
	}
	return nil
}

// Width returns the normalized width.
func (a Area) Width() float64 { return a.X2 - a.X1 }

// Height returns the normalized height.
func (a Area) Height() float64 { return a.Y2 - a.Y1 }

// Map converts a normalized frame position to absolute screen coordinates,
// rounded to the nearest pixel. The result is not clamped; positions outside
// the area land off-screen.
func (a Area) Map(p input.Point, screen image.Point) image.Point {
	x := (p.X - a.X1) / a.Width() * float64(screen.X)
	y := (p.Y - a.Y1) / a.Height() * float64(screen.Y)
	return image.Point{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// Pixels returns the area scaled to a w×h image.
func (a Area) Pixels(w, h int) image.Rectangle {
	return image.Rect(
		int(a.X1*float64(w)), int(a.Y1*float64(h)),
		int(a.X2*float64(w)), int(a.Y2*float64(h)),
	)
}

// Clamp keeps p inside [EdgeInset, size-1-EdgeInset] on both axes.
func Clamp(p, screen image.Point) image.Point {
	return image.Point{
		X: clampAxis(p.X, screen.X),
		Y: clampAxis(p.Y, screen.Y),
	}
}

func clampAxis(v, size int) int {
	hi := size - 1 - EdgeInset
	if v > hi {
		v = hi
	}
	if v < EdgeInset {
		v = EdgeInset
	}
	return v
}
