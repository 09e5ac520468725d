package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/input"
)

// HaarDetector finds the face and eyes with OpenCV cascade classifiers. An eye
// counts as open when the eye cascade finds it on its side of the face.
type HaarDetector struct {
	cfg    Config
	face   gocv.CascadeClassifier
	eye    gocv.CascadeClassifier
	tongue *TongueModel
}

// NewHaarDetector loads both cascades and, if configured, the tongue model.
func NewHaarDetector(cfg Config) (*HaarDetector, error) {
	if err := requireFile(cfg.FaceCascade); err != nil {
		return nil, fmt.Errorf("face cascade: %w", err)
	}
	if err := requireFile(cfg.EyeCascade); err != nil {
		return nil, fmt.Errorf("eye cascade: %w", err)
	}

	d := &HaarDetector{
		cfg:  cfg,
		face: gocv.NewCascadeClassifier(),
		eye:  gocv.NewCascadeClassifier(),
	}
	if !d.face.Load(cfg.FaceCascade) {
		d.Close()
		return nil, fmt.Errorf("load face cascade %s", cfg.FaceCascade)
	}
	if !d.eye.Load(cfg.EyeCascade) {
		d.Close()
		return nil, fmt.Errorf("load eye cascade %s", cfg.EyeCascade)
	}

	if cfg.TongueModel != "" {
		tm, err := NewTongueModel(cfg.TongueModel, cfg.Confidence)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.tongue = tm
	}

	return d, nil
}

func (d *HaarDetector) Detect(frame *gocv.Mat) (Result, error) {
	res := Result{Annotated: frame.Clone()}
	size := image.Pt(frame.Cols(), frame.Rows())

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	faces := d.face.DetectMultiScaleWithParams(gray, 1.3, 5, 0, image.Point{}, image.Point{})
	face, ok := largest(faces)
	if !ok {
		return res, nil
	}
	face = face.Intersect(image.Rectangle{Max: size})

	res.Observation.Face = input.Some(normalize(centre(face), size))
	drawFace(&res.Annotated, face)

	grayFace := gray.Region(face)
	eyes := d.eye.DetectMultiScaleWithParams(grayFace, 1.1, 7, 0, image.Point{}, image.Point{})
	grayFace.Close()

	leftOpen, rightOpen, kept := classifyEyes(face, eyes, d.cfg.MinEyeWidth)
	res.Observation.LeftEyeOpen = input.Some(leftOpen)
	res.Observation.RightEyeOpen = input.Some(rightOpen)
	drawEyes(&res.Annotated, face, kept, leftOpen, rightOpen)

	if d.tongue != nil {
		tongue, box, found, err := d.tongue.Classify(*frame, face)
		if err != nil {
			res.Annotated.Close()
			return Result{}, fmt.Errorf("tongue model: %w", err)
		}
		if found {
			res.Observation.Tongue = input.Some(tongue)
			drawTongue(&res.Annotated, box, tongue.Down)
		}
	}

	return res, nil
}

func (d *HaarDetector) Close() error {
	d.face.Close()
	d.eye.Close()
	if d.tongue != nil {
		return d.tongue.Close()
	}
	return nil
}
