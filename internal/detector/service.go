package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mugshot/internal/input"
)

// LandmarkDetector delegates face landmarking to a long-running helper
// process, usually the one found by FindLandmarkService.
//
// The service announces itself with a {"ready":true} line after loading its
// models, or {"ready":false,"error":"..."}. Frames then go to its stdin as a
// 4-byte big-endian length followed by JPEG bytes, and each frame yields one
// JSON line on stdout:
//
//	{"faces":[{"box":[x1,y1,x2,y2],"landmarks":[[x,y],...],"tongue":[x1,y1,x2,y2]}],"error":""}
//
// landmarks holds the 68 points of the iBUG 300-W layout in pixels; tongue is
// optional. A non-empty error fails that frame only.
type LandmarkDetector struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	closed bool
}

type serviceHello struct {
	Ready bool   `json:"ready"`
	Error string `json:"error"`
}

type serviceFace struct {
	Box       [4]int       `json:"box"`
	Landmarks [][2]float64 `json:"landmarks"`
	Tongue    *[4]int      `json:"tongue"`
}

type serviceResponse struct {
	Faces []serviceFace `json:"faces"`
	Error string        `json:"error"`
}

// NewLandmarkDetector starts the service and waits for its ready line.
func NewLandmarkDetector(cfg Config) (*LandmarkDetector, error) {
	args := strings.Fields(cfg.LandmarkService)
	if len(args) == 0 {
		return nil, fmt.Errorf("landmark service: %w: no command configured", ErrModelNotFound)
	}
	if cfg.EyeOpenEAR <= 0 {
		cfg.EyeOpenEAR = DefaultConfig().EyeOpenEAR
	}

	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start landmark service: %w", err)
	}

	d := &LandmarkDetector{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}

	var hello serviceHello
	if err := d.readLine(&hello); err != nil {
		d.Close()
		return nil, fmt.Errorf("landmark service handshake: %w", err)
	}
	if !hello.Ready {
		d.Close()
		return nil, fmt.Errorf("landmark service not ready: %s", hello.Error)
	}

	return d, nil
}

func (d *LandmarkDetector) Detect(frame *gocv.Mat) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Result{}, fmt.Errorf("landmark service closed")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}
	data := buf.GetBytes()
	err = d.writeFrame(data)
	buf.Close()
	if err != nil {
		return Result{}, err
	}

	var resp serviceResponse
	if err := d.readLine(&resp); err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("landmark service: %s", resp.Error)
	}

	res := Result{Annotated: frame.Clone()}
	face, ok := primaryFace(resp.Faces)
	if !ok {
		return res, nil
	}
	d.observe(&res, face, image.Pt(frame.Cols(), frame.Rows()))
	return res, nil
}

func (d *LandmarkDetector) observe(res *Result, f serviceFace, size image.Point) {
	box := image.Rect(f.Box[0], f.Box[1], f.Box[2], f.Box[3])
	res.Observation.Face = input.Some(normalize(centre(box), size))
	drawFace(&res.Annotated, box)

	if len(f.Landmarks) >= NumLandmarks {
		var shape FaceLandmarks
		for i := range shape {
			shape[i] = Point2D{X: f.Landmarks[i][0], Y: f.Landmarks[i][1]}
		}
		left := EyeAspectRatio(shape.LeftEye())
		right := EyeAspectRatio(shape.RightEye())
		leftOpen := left >= d.cfg.EyeOpenEAR
		rightOpen := right >= d.cfg.EyeOpenEAR
		res.Observation.LeftEyeOpen = input.Some(leftOpen)
		res.Observation.RightEyeOpen = input.Some(rightOpen)

		drawLandmarks(&res.Annotated, shape[:])
		drawEAR(&res.Annotated, left, right)
		drawEyes(&res.Annotated, box, nil, leftOpen, rightOpen)
	}

	if f.Tongue != nil {
		tb := image.Rect(f.Tongue[0], f.Tongue[1], f.Tongue[2], f.Tongue[3])
		if t, ok := tongueFromBox(tb.Sub(box.Min), box.Dy()); ok {
			res.Observation.Tongue = input.Some(t)
			drawTongue(&res.Annotated, tb, t.Down)
		}
	}
}

// primaryFace picks the face with the largest box.
func primaryFace(faces []serviceFace) (serviceFace, bool) {
	rects := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		rects[i] = image.Rect(f.Box[0], f.Box[1], f.Box[2], f.Box[3])
	}
	best, ok := largest(rects)
	if !ok {
		return serviceFace{}, false
	}
	for i, r := range rects {
		if r == best {
			return faces[i], true
		}
	}
	return serviceFace{}, false
}

func (d *LandmarkDetector) writeFrame(data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func (d *LandmarkDetector) readLine(v any) error {
	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("parse %q: %w", strings.TrimSpace(string(line)), err)
	}
	return nil
}

// Close stops the service by closing its stdin and waits for it to exit.
func (d *LandmarkDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.stdin.Close()
	return d.cmd.Wait()
}
