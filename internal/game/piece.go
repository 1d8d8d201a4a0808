// Package game implements the checkers rules played through the gesture
// pipeline.
package game

import "github.com/ayusman/gestureboard/internal/board"

// Player is a side. Its value matches the sign of the side's pieces.
type Player int

const (
	PlayerRed   Player = 1
	PlayerBlack Player = -1
)

// Opponent returns the other side.
func (p Player) Opponent() Player { return -p }

func (p Player) String() string {
	switch p {
	case PlayerRed:
		return "red"
	case PlayerBlack:
		return "black"
	default:
		return "none"
	}
}

// Piece is the content of a square.
type Piece int

const (
	BlackKing Piece = -2
	Black     Piece = -1
	Empty     Piece = 0
	Red       Piece = 1
	RedKing   Piece = 2
)

// Owner returns the side the piece belongs to, or 0 for Empty.
func (p Piece) Owner() Player {
	switch {
	case p > 0:
		return PlayerRed
	case p < 0:
		return PlayerBlack
	default:
		return 0
	}
}

// IsKing reports whether the piece moves in all four directions.
func (p Piece) IsKing() bool { return p == RedKing || p == BlackKing }

func (p Piece) king() Piece {
	if p > 0 {
		return RedKing
	}
	return BlackKing
}

// directions lists the diagonal steps available to the piece. Red moves
// down the board, black moves up.
func (p Piece) directions() [][2]int {
	switch {
	case p.IsKing():
		return [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	case p == Red:
		return [][2]int{{1, -1}, {1, 1}}
	case p == Black:
		return [][2]int{{-1, -1}, {-1, 1}}
	default:
		return nil
	}
}

// Board is the 8×8 grid indexed [row][col].
type Board [board.Size][board.Size]Piece

// NewBoard returns the opening position: red on rows 0-2, black on rows
// 5-7, dark squares only.
func NewBoard() Board {
	var b Board
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			if (r+c)%2 != 1 {
				continue
			}
			switch {
			case r < 3:
				b[r][c] = Red
			case r >= board.Size-3:
				b[r][c] = Black
			}
		}
	}
	return b
}

// At returns the piece on c, or Empty outside the board.
func (b *Board) At(c board.Cell) Piece {
	if !c.In(board.Size) {
		return Empty
	}
	return b[c.Row][c.Col]
}

func (b *Board) set(c board.Cell, p Piece) { b[c.Row][c.Col] = p }

// PieceCounts tallies the pieces on the board.
type PieceCounts struct {
	Red        int `json:"red"`
	Black      int `json:"black"`
	RedKings   int `json:"red_kings"`
	BlackKings int `json:"black_kings"`
}

// Counts returns the piece tallies. Kings count toward their side too.
func (b *Board) Counts() PieceCounts {
	var pc PieceCounts
	for _, row := range b {
		for _, p := range row {
			switch p {
			case Red:
				pc.Red++
			case RedKing:
				pc.Red++
				pc.RedKings++
			case Black:
				pc.Black++
			case BlackKing:
				pc.Black++
				pc.BlackKings++
			}
		}
	}
	return pc
}
