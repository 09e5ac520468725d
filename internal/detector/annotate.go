package detector

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	colorFace   = color.RGBA{G: 255}
	colorEye    = color.RGBA{B: 255}
	colorAlert  = color.RGBA{R: 255}
	colorTongue = color.RGBA{R: 255}
)

func drawFace(img *gocv.Mat, face image.Rectangle) {
	c := centre(face)
	gocv.Rectangle(img, face, colorFace, 2)
	gocv.Circle(img, c, 5, colorFace, -1)
	gocv.PutText(img, fmt.Sprintf("Center: (%d, %d)", c.X, c.Y), c.Add(image.Pt(10, -10)),
		gocv.FontHersheySimplex, 0.5, colorFace, 2)
}

// drawEyes draws eye boxes given relative to face and labels each closed side.
func drawEyes(img *gocv.Mat, face image.Rectangle, eyes []image.Rectangle, leftOpen, rightOpen bool) {
	for _, e := range eyes {
		r := e.Add(face.Min)
		gocv.Rectangle(img, r, colorEye, 2)
		gocv.PutText(img, "Eye", r.Min.Add(image.Pt(0, -10)), gocv.FontHersheySimplex, 0.5, colorEye, 2)
	}
	if !leftOpen {
		gocv.PutText(img, "Left Eye Closed", face.Min.Add(image.Pt(0, -20)),
			gocv.FontHersheySimplex, 0.5, colorAlert, 2)
	}
	if !rightOpen {
		gocv.PutText(img, "Right Eye Closed", face.Min.Add(image.Pt(face.Dx()/2, -20)),
			gocv.FontHersheySimplex, 0.5, colorAlert, 2)
	}
}

func drawTongue(img *gocv.Mat, box image.Rectangle, down bool) {
	label := "Tongue"
	if down {
		label = "Tongue down"
	}
	gocv.Rectangle(img, box, colorTongue, 2)
	gocv.PutText(img, label, box.Min.Add(image.Pt(0, -10)), gocv.FontHersheySimplex, 0.5, colorTongue, 2)
}

func drawEAR(img *gocv.Mat, left, right float64) {
	gocv.PutText(img, fmt.Sprintf("Left EAR: %.2f", left), image.Pt(10, 30),
		gocv.FontHersheySimplex, 0.7, colorFace, 2)
	gocv.PutText(img, fmt.Sprintf("Right EAR: %.2f", right), image.Pt(10, 60),
		gocv.FontHersheySimplex, 0.7, colorFace, 2)
}

func drawLandmarks(img *gocv.Mat, pts []Point2D) {
	for _, p := range pts {
		gocv.Circle(img, image.Pt(int(p.X), int(p.Y)), 1, colorEye, -1)
	}
}
