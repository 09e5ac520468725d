package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/mugshot/internal/actuator"
)

// Toggle switches actuation on and off.
type Toggle interface {
	Enabled() bool
	SetEnabled(enabled bool) error
}

// EnabledHandler serves GET and PUT /api/enabled.
type EnabledHandler struct {
	toggle Toggle
}

// NewEnabledHandler creates an EnabledHandler.
func NewEnabledHandler(t Toggle) *EnabledHandler {
	return &EnabledHandler{toggle: t}
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

func (h *EnabledHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.toggle.Enabled()})
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *EnabledHandler) update(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Body must be {\"enabled\": true|false}")
		return
	}

	if err := h.toggle.SetEnabled(*req.Enabled); err != nil {
		if errors.Is(err, actuator.ErrActuationHalted) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to toggle actuation")
		return
	}

	writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.toggle.Enabled()})
}
