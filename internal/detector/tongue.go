package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/input"
)

const (
	yoloInputSize = 640
	yoloNMS       = 0.45
	tongueClass   = 0
)

// TongueModel runs a single-class YOLO ONNX export over the lower face.
type TongueModel struct {
	net        gocv.Net
	confidence float32
}

// NewTongueModel loads the ONNX model at path.
func NewTongueModel(path string, confidence float32) (*TongueModel, error) {
	if err := requireFile(path); err != nil {
		return nil, fmt.Errorf("tongue model: %w", err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("tongue model: cannot read %s", path)
	}
	if confidence <= 0 {
		confidence = DefaultConfig().Confidence
	}
	return &TongueModel{net: net, confidence: confidence}, nil
}

// Classify looks for the tongue below face. The returned box is in frame pixels.
func (m *TongueModel) Classify(frame gocv.Mat, face image.Rectangle) (input.Tongue, image.Rectangle, bool, error) {
	region := TongueRegion(face, image.Pt(frame.Cols(), frame.Rows()))
	if region.Empty() {
		return input.Tongue{}, image.Rectangle{}, false, nil
	}
	roi := frame.Region(region)
	defer roi.Close()

	boxes, err := m.detect(roi)
	if err != nil {
		return input.Tongue{}, image.Rectangle{}, false, err
	}

	// The last accepted box wins.
	var (
		tongue input.Tongue
		box    image.Rectangle
		found  bool
	)
	for _, b := range boxes {
		t, ok := tongueFromBox(b, face.Dy())
		if !ok {
			continue
		}
		tongue, box, found = t, b.Add(region.Min), true
	}
	return tongue, box, found, nil
}

// detect returns tongue boxes relative to roi.
func (m *TongueModel) detect(roi gocv.Mat) ([]image.Rectangle, error) {
	blob := gocv.BlobFromImage(roi, 1.0/255.0, image.Pt(yoloInputSize, yoloInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	sx := float64(roi.Cols()) / yoloInputSize
	sy := float64(roi.Rows()) / yoloInputSize
	boxes, scores := decodeYOLO(data, dims[1], dims[2], sx, sy, m.confidence)
	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, m.confidence, yoloNMS)
	kept := make([]image.Rectangle, 0, len(keep))
	for _, i := range keep {
		kept = append(kept, boxes[i])
	}
	return kept, nil
}

func (m *TongueModel) Close() error {
	return m.net.Close()
}

// decodeYOLO reads a YOLOv8 output laid out as [attrs][anchors], where attrs is
// cx, cy, w, h followed by one score per class. Boxes of tongueClass scoring at
// least minScore are scaled by (sx, sy) and returned with their scores.
func decodeYOLO(data []float32, attrs, anchors int, sx, sy float64, minScore float32) ([]image.Rectangle, []float32) {
	if attrs < 5 || len(data) < attrs*anchors {
		return nil, nil
	}
	var (
		boxes  []image.Rectangle
		scores []float32
	)
	for i := 0; i < anchors; i++ {
		best, bestClass := float32(0), -1
		for c := 0; c < attrs-4; c++ {
			if s := data[(4+c)*anchors+i]; s > best {
				best, bestClass = s, c
			}
		}
		if bestClass != tongueClass || best < minScore {
			continue
		}
		cx := float64(data[i])
		cy := float64(data[anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		scores = append(scores, best)
	}
	return boxes, scores
}
