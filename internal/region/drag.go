package region

import (
	"errors"
	"image"
)

// GrabTolerance is how close, in preview pixels, a press must be to a border to grab it.
const GrabTolerance = 5

// ErrNotDragging is returned by Release when no border was grabbed.
var ErrNotDragging = errors.New("no border grabbed")

// Border is a set of rectangle edges.
type Border uint8

const (
	BorderLeft Border = 1 << iota
	BorderRight
	BorderTop
	BorderBottom
)

// Has reports whether all edges in o are set in b.
func (b Border) Has(o Border) bool { return b&o == o }

// Drag is the draft state of one resize gesture over a preview of a fixed size.
// It is owned by a single UI connection; nothing is published until Release.
type Drag struct {
	size    image.Point
	rect    image.Rectangle
	grabbed Border
}

// NewDrag starts a draft from the currently published area over a w×h preview.
func NewDrag(current Area, w, h int) *Drag {
	return &Drag{
		size: image.Point{X: w, Y: h},
		rect: current.Pixels(w, h),
	}
}

// Rect returns the draft rectangle in preview pixels.
func (d *Drag) Rect() image.Rectangle { return d.rect }

// Grabbed returns the borders currently being dragged.
func (d *Drag) Grabbed() Border { return d.grabbed }

// Dragging reports whether any border is grabbed.
func (d *Drag) Dragging() bool { return d.grabbed != 0 }

// Press grabs every border within GrabTolerance of pt. Corners grab two borders.
func (d *Drag) Press(pt image.Point) Border {
	d.grabbed = 0
	if abs(pt.X-d.rect.Min.X) <= GrabTolerance {
		d.grabbed |= BorderLeft
	}
	if abs(pt.X-d.rect.Max.X) <= GrabTolerance {
		d.grabbed |= BorderRight
	}
	if abs(pt.Y-d.rect.Min.Y) <= GrabTolerance {
		d.grabbed |= BorderTop
	}
	if abs(pt.Y-d.rect.Max.Y) <= GrabTolerance {
		d.grabbed |= BorderBottom
	}
	return d.grabbed
}

// Move drags the grabbed borders to pt, kept inside the preview.
func (d *Drag) Move(pt image.Point) {
	pt.X = min(max(pt.X, 0), d.size.X)
	pt.Y = min(max(pt.Y, 0), d.size.Y)

	if d.grabbed.Has(BorderLeft) {
		d.rect.Min.X = pt.X
	}
	if d.grabbed.Has(BorderRight) {
		d.rect.Max.X = pt.X
	}
	if d.grabbed.Has(BorderTop) {
		d.rect.Min.Y = pt.Y
	}
	if d.grabbed.Has(BorderBottom) {
		d.rect.Max.Y = pt.Y
	}
}

// Release ends the gesture and returns the normalized area to publish.
// A draft that collapsed or inverted returns ErrDegenerateArea.
func (d *Drag) Release() (Area, error) {
	if !d.Dragging() {
		return Area{}, ErrNotDragging
	}
	d.grabbed = 0

	w, h := float64(d.size.X), float64(d.size.Y)
	if w <= 0 || h <= 0 {
		return Area{}, ErrDegenerateArea
	}
	return New(
		float64(d.rect.Min.X)/w, float64(d.rect.Min.Y)/h,
		float64(d.rect.Max.X)/w, float64(d.rect.Max.Y)/h,
	)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
