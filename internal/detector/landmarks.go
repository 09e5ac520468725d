package detector

import (
	"image"
	"math"

	"github.com/ayusman/mugshot/internal/input"
)

// Eye landmark ranges in the 68-point iBUG face layout.
const (
	RightEyeStart = 36
	LeftEyeStart  = 42
	EyePoints     = 6
	NumLandmarks  = 68
)

// Point2D is a landmark in frame pixels.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func distance(a, b Point2D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / |p0-p3| over the six eye
// landmarks. A degenerate eye with zero width yields 0.
func EyeAspectRatio(eye [EyePoints]Point2D) float64 {
	width := distance(eye[0], eye[3])
	if width < 1e-9 {
		return 0
	}
	return (distance(eye[1], eye[5]) + distance(eye[2], eye[4])) / width
}

// FaceLandmarks is the 68-point shape of one face.
type FaceLandmarks [NumLandmarks]Point2D

// LeftEye returns the six landmarks of the left eye.
func (f *FaceLandmarks) LeftEye() [EyePoints]Point2D {
	var eye [EyePoints]Point2D
	copy(eye[:], f[LeftEyeStart:LeftEyeStart+EyePoints])
	return eye
}

// RightEye returns the six landmarks of the right eye.
func (f *FaceLandmarks) RightEye() [EyePoints]Point2D {
	var eye [EyePoints]Point2D
	copy(eye[:], f[RightEyeStart:RightEyeStart+EyePoints])
	return eye
}

func largest(rects []image.Rectangle) (image.Rectangle, bool) {
	var best image.Rectangle
	found := false
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		if !found || area(r) > area(best) {
			best, found = r, true
		}
	}
	return best, found
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func centre(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2)
}

// normalize maps a pixel position to [0,1]² frame coordinates.
func normalize(p image.Point, size image.Point) input.Point {
	if size.X <= 0 || size.Y <= 0 {
		return input.Point{}
	}
	return input.Point{
		X: float64(p.X) / float64(size.X),
		Y: float64(p.Y) / float64(size.Y),
	}
}

// classifyEyes reports which side of the face has a visible eye. Eye boxes are
// relative to the face; boxes narrower than minWidth of the face are ignored.
func classifyEyes(face image.Rectangle, eyes []image.Rectangle, minWidth float64) (left, right bool, kept []image.Rectangle) {
	mid := face.Dx() / 2
	for _, e := range eyes {
		if float64(e.Dx()) <= float64(face.Dx())*minWidth {
			continue
		}
		kept = append(kept, e)
		if centre(e).X < mid {
			left = true
		} else {
			right = true
		}
	}
	return left, right, kept
}

// TongueRegion extends the face box downwards to 1.2x its height, clipped to
// the frame.
func TongueRegion(face image.Rectangle, frame image.Point) image.Rectangle {
	r := image.Rect(face.Min.X, face.Min.Y, face.Max.X, face.Min.Y+face.Dy()*6/5)
	return r.Intersect(image.Rectangle{Max: frame})
}

// tongueFromBox classifies a tongue box given relative to the face origin.
// Boxes starting in the upper 60% of the face are rejected.
func tongueFromBox(box image.Rectangle, faceHeight int) (input.Tongue, bool) {
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return input.Tongue{}, false
	}
	if float64(box.Min.Y) < float64(faceHeight)*0.6 {
		return input.Tongue{}, false
	}
	ratio := float64(box.Dy()) / float64(box.Dx())
	return input.Tongue{Down: ratio > 2.0/3.0, AspectRatio: ratio}, true
}
