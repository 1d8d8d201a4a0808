package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/gestureboard/internal/store"
)

// DefaultListLimit caps list endpoints without an explicit limit.
const DefaultListLimit = 100

// GameHandler serves persisted games.
type GameHandler struct {
	store *store.Store
}

// NewGameHandler creates a new GameHandler with the given store.
func NewGameHandler(s *store.Store) *GameHandler {
	return &GameHandler{store: s}
}

// ServeHTTP routes /api/games and /api/games/{id}.
func (h *GameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/games"), "/")
	if id == "" {
		h.list(w, r)
		return
	}
	if strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	h.get(w, id)
}

type listGamesResponse struct {
	Games []*store.Game `json:"games"`
}

// list handles GET /api/games, newest first.
func (h *GameHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, DefaultListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	games, err := h.store.Games().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list games")
		return
	}
	if games == nil {
		games = []*store.Game{}
	}
	writeJSON(w, http.StatusOK, listGamesResponse{Games: games})
}

// get handles GET /api/games/{id} and includes the moves.
func (h *GameHandler) get(w http.ResponseWriter, id string) {
	g, err := h.store.Games().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get game")
		return
	}
	if g.Moves == nil {
		g.Moves = []*store.MoveRecord{}
	}
	writeJSON(w, http.StatusOK, g)
}
