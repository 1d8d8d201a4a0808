package game

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/log"
)

var (
	// ErrInvalidMove is returned for a move not in the piece's valid moves.
	ErrInvalidMove = errors.New("invalid move")
	// ErrOutOfBounds is returned when a move names a cell off the board.
	ErrOutOfBounds = errors.New("cell out of bounds")
)

// Move is one executed move.
type Move struct {
	Player   Player      `json:"player"`
	From     board.Cell  `json:"from"`
	To       board.Cell  `json:"to"`
	Captured *board.Cell `json:"captured"`
	Promoted bool        `json:"promoted"`
}

// MoveResult describes the position after a move.
type MoveResult struct {
	Move          Move
	CurrentPlayer Player
	Winner        Player
	GameOver      bool
}

// Snapshot is a copy of the full game state.
type Snapshot struct {
	Board         Board
	CurrentPlayer Player
	Counts        PieceCounts
	ValidMoves    map[board.Cell][]board.Cell
	Winner        Player
	GameOver      bool
}

// Engine holds a checkers game. It is safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	board   Board
	current Player
	history []Move
}

// NewEngine returns an engine at the opening position with red to move.
func NewEngine() *Engine {
	e := &Engine{}
	e.reset()
	return e
}

// Reset restores the opening position.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
	log.Info("game reset")
}

func (e *Engine) reset() {
	e.board = NewBoard()
	e.current = PlayerRed
	e.history = nil
}

// Board returns a copy of the board.
func (e *Engine) Board() Board {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board
}

// CurrentPlayer returns the side to move.
func (e *Engine) CurrentPlayer() Player {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// History returns the executed moves in order.
func (e *Engine) History() []Move {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Move(nil), e.history...)
}

// PieceCounts returns the piece tallies.
func (e *Engine) PieceCounts() PieceCounts {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Counts()
}

// IsOwnPiece reports whether c holds a piece of the side to move.
func (e *Engine) IsOwnPiece(c board.Cell) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.At(c).Owner() == e.current
}

// ValidMoves returns the destinations for the piece on c. It is empty
// unless c holds a piece of the side to move.
func (e *Engine) ValidMoves(c board.Cell) []board.Cell {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validMoves(c)
}

func (e *Engine) validMoves(c board.Cell) []board.Cell {
	piece := e.board.At(c)
	if piece == Empty || piece.Owner() != e.current {
		return nil
	}

	var moves []board.Cell
	for _, d := range piece.directions() {
		step := board.Cell{Row: c.Row + d[0], Col: c.Col + d[1]}
		if step.In(board.Size) && e.board.At(step) == Empty {
			moves = append(moves, step)
		}

		jump := board.Cell{Row: c.Row + 2*d[0], Col: c.Col + 2*d[1]}
		if !jump.In(board.Size) || e.board.At(jump) != Empty {
			continue
		}
		if over := e.board.At(step); over != Empty && over.Owner() != piece.Owner() {
			moves = append(moves, jump)
		}
	}
	return moves
}

// AllValidMoves returns the valid moves of every piece of the side to move
// that has at least one.
func (e *Engine) AllValidMoves() map[board.Cell][]board.Cell {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allValidMoves()
}

func (e *Engine) allValidMoves() map[board.Cell][]board.Cell {
	all := make(map[board.Cell][]board.Cell)
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			cell := board.Cell{Row: r, Col: c}
			if moves := e.validMoves(cell); len(moves) > 0 {
				all[cell] = moves
			}
		}
	}
	return all
}

// MakeMove executes from→to for the side to move.
func (e *Engine) MakeMove(from, to board.Cell) (MoveResult, error) {
	if !from.In(board.Size) || !to.In(board.Size) {
		return MoveResult{}, fmt.Errorf("move %s -> %s: %w", from, to, ErrOutOfBounds)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !contains(e.validMoves(from), to) {
		log.Info("invalid move rejected", "from", from, "to", to, "player", e.current)
		return MoveResult{}, fmt.Errorf("move %s -> %s: %w", from, to, ErrInvalidMove)
	}

	piece := e.board.At(from)
	e.board.set(to, piece)
	e.board.set(from, Empty)

	move := Move{Player: e.current, From: from, To: to}
	if abs(to.Row-from.Row) == 2 {
		mid := board.Cell{Row: (from.Row + to.Row) / 2, Col: (from.Col + to.Col) / 2}
		e.board.set(mid, Empty)
		move.Captured = &mid
	}
	if !piece.IsKing() && ((piece == Red && to.Row == board.Size-1) || (piece == Black && to.Row == 0)) {
		e.board.set(to, piece.king())
		move.Promoted = true
	}

	e.current = e.current.Opponent()
	e.history = append(e.history, move)

	winner, over := e.winner()
	log.Info("move executed",
		"player", move.Player,
		"from", from,
		"to", to,
		"captured", move.Captured != nil,
		"promoted", move.Promoted,
		"game_over", over)

	return MoveResult{
		Move:          move,
		CurrentPlayer: e.current,
		Winner:        winner,
		GameOver:      over,
	}, nil
}

// Winner returns the winning side once the game is over. A side with no
// pieces loses, as does the side to move when it has no valid move.
func (e *Engine) Winner() (Player, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.winner()
}

func (e *Engine) winner() (Player, bool) {
	counts := e.board.Counts()
	switch {
	case counts.Red == 0:
		return PlayerBlack, true
	case counts.Black == 0:
		return PlayerRed, true
	}
	if len(e.allValidMoves()) == 0 {
		return e.current.Opponent(), true
	}
	return 0, false
}

// Snapshot returns a consistent copy of the game state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	winner, over := e.winner()
	return Snapshot{
		Board:         e.board,
		CurrentPlayer: e.current,
		Counts:        e.board.Counts(),
		ValidMoves:    e.allValidMoves(),
		Winner:        winner,
		GameOver:      over,
	}
}

func contains(cells []board.Cell, c board.Cell) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
