package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedGame(t *testing.T, s *store.Store, id string, moves int) {
	t.Helper()
	if err := s.Games().Create(&store.Game{ID: id, SessionID: "default"}); err != nil {
		t.Fatalf("failed to create game: %v", err)
	}
	for i := 1; i <= moves; i++ {
		err := s.Games().AddMove(&store.MoveRecord{
			GameID: id,
			Seq:    i,
			Player: "red",
			From:   board.Cell{Row: 2, Col: 1},
			To:     board.Cell{Row: 3, Col: 2},
		})
		if err != nil {
			t.Fatalf("failed to add move: %v", err)
		}
	}
}

func TestGameHandler_List(t *testing.T) {
	s := newTestStore(t)
	h := NewGameHandler(s)

	t.Run("returns empty list when no games", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp listGamesResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Games == nil || len(resp.Games) != 0 {
			t.Errorf("games = %v, want empty list", resp.Games)
		}
	})

	seedGame(t, s, "g1", 0)
	seedGame(t, s, "g2", 0)
	seedGame(t, s, "g3", 0)

	tests := []struct {
		name  string
		url   string
		code  int
		count int
	}{
		{"all games", "/api/games", http.StatusOK, 3},
		{"limit", "/api/games?limit=2", http.StatusOK, 2},
		{"zero limit means all", "/api/games?limit=0", http.StatusOK, 3},
		{"invalid limit", "/api/games?limit=abc", http.StatusBadRequest, 0},
		{"negative limit", "/api/games?limit=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var resp listGamesResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(resp.Games) != tt.count {
				t.Errorf("len(games) = %d, want %d", len(resp.Games), tt.count)
			}
		})
	}
}

func TestGameHandler_Get(t *testing.T) {
	s := newTestStore(t)
	h := NewGameHandler(s)
	seedGame(t, s, "g1", 2)
	seedGame(t, s, "empty", 0)

	t.Run("includes moves", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/g1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var g struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Moves  []struct {
				Seq  int   `json:"seq"`
				From []int `json:"from"`
				To   []int `json:"to"`
			} `json:"moves"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&g); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if g.ID != "g1" || g.Status != "active" {
			t.Errorf("game = %s/%s, want g1/active", g.ID, g.Status)
		}
		if len(g.Moves) != 2 {
			t.Fatalf("len(moves) = %d, want 2", len(g.Moves))
		}
		if g.Moves[0].Seq != 1 || g.Moves[0].From[0] != 2 || g.Moves[0].To[1] != 2 {
			t.Errorf("first move = %+v", g.Moves[0])
		}
	})

	t.Run("game without moves has empty list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/empty", nil))

		var g map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&g); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		moves, ok := g["moves"].([]any)
		if !ok || len(moves) != 0 {
			t.Errorf("moves = %v, want empty list", g["moves"])
		}
	})

	t.Run("unknown game returns 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("nested path returns 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/g1/moves", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("only allows GET", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/api/games/g1", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: status = %d, want %d", method, rec.Code, http.StatusMethodNotAllowed)
			}
		}
	})
}
