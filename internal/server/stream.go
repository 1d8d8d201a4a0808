package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/gestureboard/internal/session"
)

// StreamInterval is how often the stream checks for a new preview.
const StreamInterval = 33 * time.Millisecond

// StreamHandler serves a session's annotated preview as MJPEG.
type StreamHandler struct {
	session *session.Session
}

// NewStreamHandler creates a new StreamHandler for sess.
func NewStreamHandler(sess *session.Session) *StreamHandler {
	return &StreamHandler{session: sess}
}

// ServeHTTP streams every new preview frame until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	ticker := time.NewTicker(StreamInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpg, seq := h.session.Preview()
		if seq == last || len(jpg) == 0 {
			continue
		}
		last = seq

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpg)); err != nil {
			return
		}
		if _, err := w.Write(jpg); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
