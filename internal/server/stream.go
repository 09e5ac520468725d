package server

import (
	"fmt"
	"image"
	"image/color"
	"net/http"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/time/rate"

	"github.com/ayusman/mugshot/internal/region"
)

var colorMapArea = color.RGBA{R: 255, G: 200}

// Preview keeps the latest annotated frame for the MJPEG stream. It
// implements app.Display.
type Preview struct {
	area *region.Store

	mu     sync.Mutex
	latest gocv.Mat
	seq    uint64
	closed bool
}

// NewPreview creates a Preview that outlines the current map area on every
// streamed frame.
func NewPreview(area *region.Store) *Preview {
	return &Preview{area: area, latest: gocv.NewMat()}
}

// Show stores a copy of frame.
func (p *Preview) Show(seq uint64, frame gocv.Mat) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	frame.CopyTo(&p.latest)
	p.seq = seq
}

// Seq returns the sequence number of the latest frame, 0 before the first.
func (p *Preview) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Size returns the dimensions of the latest frame.
func (p *Preview) Size() image.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return image.Point{}
	}
	return image.Pt(p.latest.Cols(), p.latest.Rows())
}

// JPEG encodes the latest frame with the map area drawn on it. It reports
// false until a frame has been shown.
func (p *Preview) JPEG() ([]byte, uint64, bool, error) {
	p.mu.Lock()
	if p.closed || p.seq == 0 {
		p.mu.Unlock()
		return nil, 0, false, nil
	}
	img := p.latest.Clone()
	seq := p.seq
	p.mu.Unlock()
	defer img.Close()

	rect := p.area.Load().Pixels(img.Cols(), img.Rows())
	gocv.Rectangle(&img, rect, colorMapArea, 2)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, seq, false, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, seq, true, nil
}

// Close releases the stored frame.
func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.latest.Close()
}

// StreamFPS caps the frame rate sent to each MJPEG client.
const StreamFPS = 15

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	preview *Preview
	fps     rate.Limit
}

// NewStreamHandler creates a new StreamHandler over preview.
func NewStreamHandler(preview *Preview) *StreamHandler {
	return &StreamHandler{preview: preview, fps: StreamFPS}
}

// ServeHTTP streams new preview frames to the client at up to StreamFPS.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// One limiter per client.
	limiter := rate.NewLimiter(h.fps, 1)

	var sent uint64
	for {
		if err := limiter.Wait(r.Context()); err != nil {
			return
		}

		if h.preview.Seq() == sent {
			continue
		}
		data, seq, ok, err := h.preview.JPEG()
		if err != nil || !ok {
			continue
		}
		sent = seq

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
