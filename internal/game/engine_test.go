package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gestureboard/internal/board"
)

func cell(r, c int) board.Cell { return board.Cell{Row: r, Col: c} }

// custom returns an engine with only the given pieces on the board.
func custom(current Player, pieces map[board.Cell]Piece) *Engine {
	e := NewEngine()
	e.board = Board{}
	for c, p := range pieces {
		e.board.set(c, p)
	}
	e.current = current
	return e
}

func TestNewBoard(t *testing.T) {
	b := NewBoard()

	counts := b.Counts()
	assert.Equal(t, PieceCounts{Red: 12, Black: 12}, counts)

	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			p := b.At(cell(r, c))
			if (r+c)%2 == 0 {
				assert.Equal(t, Empty, p, "light square %d,%d", r, c)
				continue
			}
			switch {
			case r < 3:
				assert.Equal(t, Red, p)
			case r > 4:
				assert.Equal(t, Black, p)
			default:
				assert.Equal(t, Empty, p)
			}
		}
	}
}

func TestEngine_OpeningMoves(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, PlayerRed, e.CurrentPlayer())

	assert.ElementsMatch(t, []board.Cell{cell(3, 0), cell(3, 2)}, e.ValidMoves(cell(2, 1)))
	assert.ElementsMatch(t, []board.Cell{cell(3, 6)}, e.ValidMoves(cell(2, 7)))

	all := e.AllValidMoves()
	assert.Len(t, all, 4)
	total := 0
	for from, moves := range all {
		assert.Equal(t, 2, from.Row)
		total += len(moves)
	}
	assert.Equal(t, 7, total)
}

func TestEngine_ValidMoves_NotOwnPiece(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name string
		cell board.Cell
	}{
		{name: "opponent piece", cell: cell(5, 0)},
		{name: "empty square", cell: cell(4, 3)},
		{name: "blocked own piece", cell: cell(0, 1)},
		{name: "off board", cell: cell(-1, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, e.ValidMoves(tt.cell))
		})
	}

	assert.True(t, e.IsOwnPiece(cell(2, 1)))
	assert.False(t, e.IsOwnPiece(cell(5, 0)))
	assert.False(t, e.IsOwnPiece(cell(3, 0)))
}

func TestEngine_MakeMove(t *testing.T) {
	e := NewEngine()

	res, err := e.MakeMove(cell(2, 1), cell(3, 2))
	require.NoError(t, err)

	assert.Equal(t, Move{Player: PlayerRed, From: cell(2, 1), To: cell(3, 2)}, res.Move)
	assert.Equal(t, PlayerBlack, res.CurrentPlayer)
	assert.False(t, res.GameOver)
	b := e.Board()
	assert.Equal(t, Empty, b.At(cell(2, 1)))
	assert.Equal(t, Red, b.At(cell(3, 2)))
	assert.Equal(t, PlayerBlack, e.CurrentPlayer())
	assert.Len(t, e.History(), 1)

	// Red cannot move twice in a row.
	_, err = e.MakeMove(cell(2, 3), cell(3, 4))
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestEngine_MakeMove_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		from    board.Cell
		to      board.Cell
		wantErr error
	}{
		{name: "not diagonal", from: cell(2, 1), to: cell(3, 1), wantErr: ErrInvalidMove},
		{name: "backwards", from: cell(2, 1), to: cell(1, 0), wantErr: ErrInvalidMove},
		{name: "opponent piece", from: cell(5, 0), to: cell(4, 1), wantErr: ErrInvalidMove},
		{name: "empty source", from: cell(3, 0), to: cell(4, 1), wantErr: ErrInvalidMove},
		{name: "off board", from: cell(2, 1), to: cell(8, 0), wantErr: ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			before := e.Board()

			_, err := e.MakeMove(tt.from, tt.to)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, e.Board())
			assert.Equal(t, PlayerRed, e.CurrentPlayer())
			assert.Empty(t, e.History())
		})
	}
}

func TestEngine_Capture(t *testing.T) {
	e := custom(PlayerRed, map[board.Cell]Piece{
		cell(2, 1): Red,
		cell(3, 2): Black,
		cell(6, 5): Black,
	})

	assert.ElementsMatch(t, []board.Cell{cell(3, 0), cell(4, 3)}, e.ValidMoves(cell(2, 1)))

	res, err := e.MakeMove(cell(2, 1), cell(4, 3))
	require.NoError(t, err)
	require.NotNil(t, res.Move.Captured)
	assert.Equal(t, cell(3, 2), *res.Move.Captured)
	b := e.Board()
	assert.Equal(t, Empty, b.At(cell(3, 2)))
	assert.Equal(t, PieceCounts{Red: 1, Black: 1}, e.PieceCounts())
	assert.False(t, res.GameOver)
}

func TestEngine_CaptureLastPieceWins(t *testing.T) {
	e := custom(PlayerRed, map[board.Cell]Piece{
		cell(2, 1): Red,
		cell(3, 2): Black,
	})

	res, err := e.MakeMove(cell(2, 1), cell(4, 3))
	require.NoError(t, err)
	assert.True(t, res.GameOver)
	assert.Equal(t, PlayerRed, res.Winner)

	winner, over := e.Winner()
	assert.True(t, over)
	assert.Equal(t, PlayerRed, winner)
}

func TestEngine_NoCaptureOverOwnPiece(t *testing.T) {
	e := custom(PlayerRed, map[board.Cell]Piece{
		cell(2, 1): Red,
		cell(3, 2): Red,
		cell(7, 0): Black,
	})

	assert.ElementsMatch(t, []board.Cell{cell(3, 0)}, e.ValidMoves(cell(2, 1)))
}

func TestEngine_Promotion(t *testing.T) {
	tests := []struct {
		name   string
		player Player
		piece  Piece
		from   board.Cell
		to     board.Cell
		want   Piece
	}{
		{name: "red reaches last row", player: PlayerRed, piece: Red, from: cell(6, 1), to: cell(7, 2), want: RedKing},
		{name: "black reaches first row", player: PlayerBlack, piece: Black, from: cell(1, 2), to: cell(0, 1), want: BlackKing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := custom(tt.player, map[board.Cell]Piece{
				tt.from:    tt.piece,
				cell(4, 7): -tt.piece,
				cell(3, 0): tt.piece,
			})

			res, err := e.MakeMove(tt.from, tt.to)
			require.NoError(t, err)
			assert.True(t, res.Move.Promoted)
			b := e.Board()
			assert.Equal(t, tt.want, b.At(tt.to))
		})
	}
}

func TestEngine_KingMovesAllDirections(t *testing.T) {
	e := custom(PlayerRed, map[board.Cell]Piece{
		cell(4, 3): RedKing,
		cell(5, 4): Black,
		cell(0, 7): Black,
	})

	assert.ElementsMatch(t,
		[]board.Cell{cell(3, 2), cell(3, 4), cell(5, 2), cell(6, 5)},
		e.ValidMoves(cell(4, 3)))

	res, err := e.MakeMove(cell(4, 3), cell(2, 1))
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Zero(t, res)
}

func TestEngine_NoMovesLoses(t *testing.T) {
	e := custom(PlayerBlack, map[board.Cell]Piece{
		cell(7, 0): Black,
		cell(6, 1): Red,
		cell(5, 2): Red,
	})

	assert.Empty(t, e.AllValidMoves())
	winner, over := e.Winner()
	assert.True(t, over)
	assert.Equal(t, PlayerRed, winner)

	snap := e.Snapshot()
	assert.True(t, snap.GameOver)
	assert.Equal(t, PlayerRed, snap.Winner)
}

func TestEngine_ResetAndSnapshot(t *testing.T) {
	e := NewEngine()
	_, err := e.MakeMove(cell(2, 1), cell(3, 0))
	require.NoError(t, err)

	e.Reset()
	snap := e.Snapshot()
	assert.Equal(t, NewBoard(), snap.Board)
	assert.Equal(t, PlayerRed, snap.CurrentPlayer)
	assert.Equal(t, PieceCounts{Red: 12, Black: 12}, snap.Counts)
	assert.Len(t, snap.ValidMoves, 4)
	assert.False(t, snap.GameOver)
	assert.Empty(t, e.History())
}

func TestPlayer_String(t *testing.T) {
	assert.Equal(t, "red", PlayerRed.String())
	assert.Equal(t, "black", PlayerBlack.String())
	assert.Equal(t, PlayerBlack, PlayerRed.Opponent())
	assert.Equal(t, PlayerRed, Piece(RedKing).Owner())
	assert.True(t, BlackKing.IsKing())
}
