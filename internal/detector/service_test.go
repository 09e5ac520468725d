package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"testing"

	"gocv.io/x/gocv"
)

const helperEnv = "MUGSHOT_LANDMARK_HELPER"

// TestHelperLandmarkService is not a real test. It stands in for the landmark
// service when the test binary is started with helperEnv set.
func TestHelperLandmarkService(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	out := bufio.NewWriter(os.Stdout)
	fmt.Fprintln(out, `{"ready":true}`)
	out.Flush()

	in := bufio.NewReader(os.Stdin)
	for {
		var n uint32
		if err := binary.Read(in, binary.BigEndian, &n); err != nil {
			os.Exit(0)
		}
		if _, err := io.CopyN(io.Discard, in, int64(n)); err != nil {
			os.Exit(0)
		}
		json.NewEncoder(out).Encode(helperResponse())
		out.Flush()
	}
}

// helperResponse describes one face in a 640x480 frame with the left eye open,
// the right eye closed and the tongue pointing down.
func helperResponse() serviceResponse {
	face := serviceFace{
		Box:       [4]int{100, 100, 300, 300},
		Landmarks: make([][2]float64, NumLandmarks),
		Tongue:    &[4]int{180, 270, 220, 330},
	}
	left := [][2]float64{{200, 150}, {210, 140}, {230, 140}, {240, 150}, {230, 160}, {210, 160}}
	right := [][2]float64{{140, 150}, {150, 148}, {170, 148}, {180, 150}, {170, 152}, {150, 152}}
	copy(face.Landmarks[LeftEyeStart:], left)
	copy(face.Landmarks[RightEyeStart:], right)
	return serviceResponse{Faces: []serviceFace{face}}
}

func TestLandmarkDetector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	t.Setenv(helperEnv, "1")

	cfg := DefaultConfig()
	cfg.LandmarkService = os.Args[0] + " -test.run=^TestHelperLandmarkService$"

	d, err := NewLandmarkDetector(cfg)
	if err != nil {
		t.Fatalf("NewLandmarkDetector() error = %v", err)
	}

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	res, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	defer res.Annotated.Close()

	obs := res.Observation
	p, ok := obs.Face.Get()
	if !ok || math.Abs(p.X-200.0/640) > epsilon || math.Abs(p.Y-200.0/480) > epsilon {
		t.Errorf("Face = %v, want centre (200,200) of 640x480", obs.Face)
	}
	if open, ok := obs.LeftEyeOpen.Get(); !ok || !open {
		t.Errorf("LeftEyeOpen = %v, want Some(true)", obs.LeftEyeOpen)
	}
	if open, ok := obs.RightEyeOpen.Get(); !ok || open {
		t.Errorf("RightEyeOpen = %v, want Some(false)", obs.RightEyeOpen)
	}
	if tongue, ok := obs.Tongue.Get(); !ok || !tongue.Down {
		t.Errorf("Tongue = %v, want down", obs.Tongue)
	}
	if res.Annotated.Empty() {
		t.Error("Annotated frame is empty")
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := d.Detect(&frame); err == nil {
		t.Error("Detect() after Close should fail")
	}
}
