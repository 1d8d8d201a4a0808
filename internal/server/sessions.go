package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/session"
)

// handleSessions handles GET and POST /api/sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"sessions": s.config.Sessions.List()})
	case http.MethodPost:
		sess, err := s.config.Sessions.Create()
		if err != nil {
			log.Warn("failed to create session", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}
		writeJSON(w, http.StatusCreated, sess.Info())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSession routes /api/sessions/{id} and /api/sessions/{id}/stream.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	sess, ok := s.config.Sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	switch sub {
	case "":
	case "stream":
		NewStreamHandler(sess).ServeHTTP(w, r)
		return
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sess.Info())
	case http.MethodDelete:
		if id == session.DefaultID {
			writeError(w, http.StatusConflict, "The default session cannot be removed")
			return
		}
		if err := s.config.Sessions.Remove(id); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Session not found")
				return
			}
			log.Warn("failed to close session", "session", id, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
