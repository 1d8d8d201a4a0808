// Package server provides the HTTP server for the gestureboard game.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/server/api"
	"github.com/ayusman/gestureboard/internal/session"
	"github.com/ayusman/gestureboard/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Sessions  *session.Manager

	// OnCalibration is called after a new marker area fit is stored.
	OnCalibration func(detector.AreaFit)
}

// Server represents the HTTP server for the gestureboard application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Sessions != nil {
		s.mux.HandleFunc("/api/sessions", s.handleSessions)
		s.mux.HandleFunc("/api/sessions/", s.handleSession)

		ws := NewWSHandler(s.config.Sessions)
		s.mux.Handle("/ws", ws)
		s.mux.Handle("/ws/", ws)
	}

	if s.config.Store != nil {
		games := api.NewGameHandler(s.config.Store)
		s.mux.Handle("/api/games", games)
		s.mux.Handle("/api/games/", games)

		s.mux.Handle("/api/actions", api.NewActionHandler(s.config.Store))

		calibration := api.NewCalibrationHandler(s.config.Store, s.config.OnCalibration)
		s.mux.Handle("/api/calibration", calibration)
		s.mux.Handle("/api/calibration/", calibration)
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

	sessions := 0
	if s.config.Sessions != nil {
		sessions = s.config.Sessions.Len()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.start).String(),
		"sessions": sessions,
	})
}

// HTTPServer returns an http.Server for addr that the caller can shut down
// gracefully.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return s.HTTPServer(addr).ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
