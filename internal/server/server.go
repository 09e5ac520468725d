// Package server provides the local HTTP control surface: health and status,
// the enable toggle, the map area, the session journal, an MJPEG preview and
// a websocket for live status and map-area dragging.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mugshot/internal/app"
	"github.com/ayusman/mugshot/internal/logging"
	"github.com/ayusman/mugshot/internal/region"
	"github.com/ayusman/mugshot/internal/server/api"
)

// Pipeline is the part of the application the server controls.
type Pipeline interface {
	Status() app.Status
	Enabled() bool
	SetEnabled(enabled bool) error
	MapArea() *region.Store
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Pipeline  Pipeline
	Preview   *Preview
	Events    api.EventLister
	SessionID string
	Logger    logrus.FieldLogger
	// StatusInterval is how often websocket clients receive status.
	StatusInterval time.Duration
}

// Server represents the HTTP server for the mugshot application.
type Server struct {
	config Config
	log    logrus.FieldLogger
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = 500 * time.Millisecond
	}

	s := &Server{
		config: config,
		log:    config.Logger.WithField(logging.FieldStage, "http"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if p := s.config.Pipeline; p != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/enabled", api.NewEnabledHandler(p))
		s.mux.Handle("/api/map-area", api.NewMapAreaHandler(p.MapArea()))
		s.mux.Handle("/api/ws", NewControlHandler(p, s.config.StatusInterval, s.log))
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", api.NewEventsHandler(s.config.Events, s.config.SessionID))
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	writeJSON(w, response)
}

type statusResponse struct {
	app.Status
	MapArea region.Area `json:"map_area"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, statusResponse{
		Status:  s.config.Pipeline.Status(),
		MapArea: s.config.Pipeline.MapArea().Load(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("control server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
