package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/mugshot/internal/region"
)

// MapAreaHandler serves GET and PUT /api/map-area.
type MapAreaHandler struct {
	area *region.Store
}

// NewMapAreaHandler creates a MapAreaHandler over the shared area store.
func NewMapAreaHandler(area *region.Store) *MapAreaHandler {
	return &MapAreaHandler{area: area}
}

type mapAreaRequest struct {
	X1 *float64 `json:"x1" validate:"required"`
	Y1 *float64 `json:"y1" validate:"required"`
	X2 *float64 `json:"x2" validate:"required"`
	Y2 *float64 `json:"y2" validate:"required"`
}

func (h *MapAreaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.area.Load())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *MapAreaHandler) update(w http.ResponseWriter, r *http.Request) {
	var req mapAreaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Body must contain x1, y1, x2 and y2")
		return
	}

	area, err := region.New(*req.X1, *req.Y1, *req.X2, *req.Y2)
	if err == nil {
		err = h.area.Update(area)
	}
	if err != nil {
		if errors.Is(err, region.ErrDegenerateArea) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update map area")
		return
	}

	writeJSON(w, http.StatusOK, h.area.Load())
}
