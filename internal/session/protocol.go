package session

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/game"
)

// Client to server message types.
const (
	TypeStartCamera   = "start_camera"
	TypeStopCamera    = "stop_camera"
	TypeMove          = "move"
	TypeReset         = "reset"
	TypeGetValidMoves = "get_valid_moves"
)

// Server to client message types.
const (
	TypeSession          = "session"
	TypeGameState        = "game_state"
	TypePieceSelected    = "piece_selected"
	TypeSelectionCleared = "selection_cleared"
	TypeMoveResult       = "move_result"
	TypeMoveError        = "move_error"
	TypeGameReset        = "game_reset"
	TypeValidMoves       = "valid_moves"
	TypeHoverPosition    = "hover_position"
	TypeHandPosition     = "hand_position"
	TypeCameraFrame      = "camera_frame"
	TypeCameraStatus     = "camera_status"
	TypeError            = "error"
)

// Message is the envelope of every server message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Request is a decoded client message. Fields are set according to Type.
type Request struct {
	Type            string      `json:"type"`
	From            *board.Cell `json:"from,omitempty"`
	To              *board.Cell `json:"to,omitempty"`
	Position        *board.Cell `json:"position,omitempty"`
	BoardDimensions *Dimensions `json:"board_dimensions,omitempty"`
	BoardRect       *board.Rect `json:"board_rect,omitempty"`
}

// Dimensions is the client's board viewport size in pixels.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ParseRequest decodes a client message.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode message: %w", err)
	}
	if req.Type == "" {
		return Request{}, fmt.Errorf("decode message: missing type")
	}
	return req, nil
}

// GameState is the full board payload of game_state and game_reset.
type GameState struct {
	Board         game.Board              `json:"board"`
	CurrentPlayer game.Player             `json:"current_player"`
	PieceCounts   game.PieceCounts        `json:"piece_counts"`
	AllValidMoves map[string][]board.Cell `json:"all_valid_moves"`
	GameOver      bool                    `json:"game_over"`
	Winner        *game.Player            `json:"winner,omitempty"`
}

// NewGameState converts an engine snapshot. Valid move keys use the
// "row,col" form.
func NewGameState(s game.Snapshot) GameState {
	moves := make(map[string][]board.Cell, len(s.ValidMoves))
	for from, to := range s.ValidMoves {
		moves[from.String()] = to
	}
	gs := GameState{
		Board:         s.Board,
		CurrentPlayer: s.CurrentPlayer,
		PieceCounts:   s.Counts,
		AllValidMoves: moves,
		GameOver:      s.GameOver,
	}
	if s.GameOver {
		w := s.Winner
		gs.Winner = &w
	}
	return gs
}

// MoveResult is the payload of move_result.
type MoveResult struct {
	Valid bool      `json:"valid"`
	Move  game.Move `json:"move"`
	GameState
}

// MoveError is the payload of move_error.
type MoveError struct {
	Valid bool        `json:"valid"`
	From  *board.Cell `json:"from,omitempty"`
	To    *board.Cell `json:"to,omitempty"`
	Error string      `json:"error"`
}

// Selection is the payload of piece_selected.
type Selection struct {
	Position   board.Cell   `json:"position"`
	ValidMoves []board.Cell `json:"valid_moves"`
}

// ValidMoves is the payload of valid_moves.
type ValidMoves struct {
	Position board.Cell   `json:"position"`
	Moves    []board.Cell `json:"moves"`
}

// HoverPosition is the payload of hover_position.
type HoverPosition struct {
	Position board.Cell `json:"position"`
}

// Hand gestures reported in hand_position.
const (
	GestureOpen     = "open"
	GestureGrabbing = "grabbing"
)

// HandPosition is the payload of hand_position. Position is in viewport
// pixels.
type HandPosition struct {
	Position   board.Point `json:"position"`
	Gesture    string      `json:"gesture"`
	Confidence float64     `json:"confidence"`
	IsOpen     bool        `json:"is_open"`
	Cell       *board.Cell `json:"cell,omitempty"`
}

// CameraFrame is the payload of camera_frame.
type CameraFrame struct {
	Frame     string    `json:"frame"`
	DebugInfo DebugInfo `json:"debug_info"`
}

// DebugInfo describes the detection shown in a preview frame.
type DebugInfo struct {
	Detected   bool        `json:"detected"`
	Reason     string      `json:"reason,omitempty"`
	IsOpen     bool        `json:"is_open"`
	Confidence float64     `json:"confidence"`
	Fingers    int         `json:"fingers"`
	HullRatio  float64     `json:"hull_ratio"`
	Cell       *board.Cell `json:"cell,omitempty"`
	Selected   *board.Cell `json:"selected,omitempty"`
	Detector   string      `json:"detector"`
}

// CameraStatus is the payload of camera_status.
type CameraStatus struct {
	Active bool   `json:"active"`
	Error  string `json:"error,omitempty"`
}

// ErrorPayload is the payload of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Hello is the payload of the session message sent on connect.
type Hello struct {
	ID string `json:"id"`
}

// Empty is the payload of messages without data.
type Empty struct{}
