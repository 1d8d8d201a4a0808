package api

import (
	"net/http"

	"github.com/ayusman/gestureboard/internal/store"
)

// ActionHandler serves the gesture action log.
type ActionHandler struct {
	store *store.Store
}

// NewActionHandler creates a new ActionHandler with the given store.
func NewActionHandler(s *store.Store) *ActionHandler {
	return &ActionHandler{store: s}
}

type listActionsResponse struct {
	Actions []*store.GestureAction `json:"actions"`
}

// ServeHTTP handles GET /api/actions?session=&limit=.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, ok := queryLimit(r, DefaultListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	actions, err := h.store.Actions().List(r.URL.Query().Get("session"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}
	if actions == nil {
		actions = []*store.GestureAction{}
	}
	writeJSON(w, http.StatusOK, listActionsResponse{Actions: actions})
}
