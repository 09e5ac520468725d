package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mugshot/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventLister reads journal events.
type EventLister interface {
	ListBySession(sessionID string, limit int) ([]*store.Event, error)
}

// EventsHandler serves GET /api/events for the current session.
type EventsHandler struct {
	events    EventLister
	sessionID string
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(events EventLister, sessionID string) *EventsHandler {
	return &EventsHandler{events: events, sessionID: sessionID}
}

type listEventsResponse struct {
	SessionID string         `json:"session_id"`
	Events    []*store.Event `json:"events"`
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.events.ListBySession(h.sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}

	writeJSON(w, http.StatusOK, listEventsResponse{SessionID: h.sessionID, Events: events})
}
