package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/session"
)

// MaxMessageSize bounds a client message.
const MaxMessageSize = 64 << 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// WSHandler serves the game protocol. /ws joins the default session and
// /ws/{id} joins an existing one.
type WSHandler struct {
	sessions *session.Manager
}

// NewWSHandler creates a handler over sessions.
func NewWSHandler(sessions *session.Manager) *WSHandler {
	return &WSHandler{sessions: sessions}
}

// ServeHTTP upgrades the request and relays client messages to the session
// until the connection closes.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade error", "error", err)
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	client := session.NewConnClient(conn)
	sess.AddClient(client)
	defer func() {
		sess.RemoveClient(client.ID())
		client.Close()
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read error", "session", sess.ID(), "client", client.ID(), "error", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		sess.HandleMessage(client, data)
	}
}

func (h *WSHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws"), "/")
	if id == "" || id == session.DefaultID {
		sess, err := h.sessions.Default()
		if err != nil {
			log.Warn("failed to open default session", "error", err)
			http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
			return nil, false
		}
		return sess, true
	}

	sess, ok := h.sessions.Get(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}
