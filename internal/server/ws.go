package server

import (
	"image"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mugshot/internal/app"
	"github.com/ayusman/mugshot/internal/region"
	"github.com/ayusman/mugshot/internal/server/api"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeWait = time.Second

// Outgoing message types.
const (
	MsgStatus  = "status"
	MsgDraft   = "draft"
	MsgMapArea = "map_area"
	MsgError   = "error"
)

// controlMessage is a pointer event from the preview overlay. Coordinates are
// in pixels of a width×height rendering of the preview.
type controlMessage struct {
	Type   string `json:"type" validate:"required,oneof=press move release"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width" validate:"gte=0"`
	Height int    `json:"height" validate:"gte=0"`
}

type outgoing struct {
	Type    string       `json:"type"`
	Status  *app.Status  `json:"status,omitempty"`
	MapArea *region.Area `json:"map_area,omitempty"`
	Draft   *draftRect   `json:"draft,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type draftRect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ControlHandler pushes pipeline status to websocket clients and lets them
// resize the map area by dragging its borders.
type ControlHandler struct {
	pipeline Pipeline
	interval time.Duration
	log      logrus.FieldLogger
}

// NewControlHandler creates a new ControlHandler.
func NewControlHandler(p Pipeline, interval time.Duration, log logrus.FieldLogger) *ControlHandler {
	return &ControlHandler{pipeline: p, interval: interval, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	out := make(chan outgoing, 8)
	done := make(chan struct{})
	go h.writeLoop(conn, out, done)
	defer close(done)

	send := func(m outgoing) {
		select {
		case out <- m:
		case <-done:
		}
	}

	// Each connection owns its draft.
	var drag *region.Drag
	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		if err := api.Validator().Struct(msg); err != nil {
			send(outgoing{Type: MsgError, Error: err.Error()})
			continue
		}

		pt := image.Pt(msg.X, msg.Y)
		switch msg.Type {
		case "press":
			if msg.Width == 0 || msg.Height == 0 {
				send(outgoing{Type: MsgError, Error: "press requires width and height"})
				continue
			}
			drag = region.NewDrag(h.pipeline.MapArea().Load(), msg.Width, msg.Height)
			if drag.Press(pt) == 0 {
				drag = nil
				continue
			}
			send(draftMessage(drag))
		case "move":
			if drag == nil {
				continue
			}
			drag.Move(pt)
			send(draftMessage(drag))
		case "release":
			if drag == nil {
				continue
			}
			drag.Move(pt)
			area, err := drag.Release()
			drag = nil
			if err == nil {
				err = h.pipeline.MapArea().Update(area)
			}
			if err != nil {
				send(outgoing{Type: MsgError, Error: err.Error()})
				current := h.pipeline.MapArea().Load()
				send(outgoing{Type: MsgMapArea, MapArea: &current})
				continue
			}
			h.log.WithField("area", area).Info("map area updated")
			send(outgoing{Type: MsgMapArea, MapArea: &area})
		}
	}
}

func (h *ControlHandler) writeLoop(conn *websocket.Conn, out <-chan outgoing, done <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	write := func(m outgoing) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m) == nil
	}

	if !write(h.statusMessage()) {
		conn.Close()
		return
	}
	for {
		var m outgoing
		select {
		case <-done:
			return
		case m = <-out:
		case <-ticker.C:
			m = h.statusMessage()
		}
		if !write(m) {
			// Unblocks the reader.
			conn.Close()
			return
		}
	}
}

func (h *ControlHandler) statusMessage() outgoing {
	status := h.pipeline.Status()
	area := h.pipeline.MapArea().Load()
	return outgoing{Type: MsgStatus, Status: &status, MapArea: &area}
}

func draftMessage(d *region.Drag) outgoing {
	r := d.Rect()
	return outgoing{Type: MsgDraft, Draft: &draftRect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}}
}
