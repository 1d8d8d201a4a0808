// Package board maps positions in viewport space onto the cells of a square
// game board.
package board

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Size is the number of rows and columns of a checkers board.
const Size = 8

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Cell identifies a board square. It encodes to JSON as [row, col].
type Cell struct {
	Row int
	Col int
}

// String returns the "row,col" form used as a map key on the wire.
func (c Cell) String() string {
	return strconv.Itoa(c.Row) + "," + strconv.Itoa(c.Col)
}

// In reports whether the cell lies on an n×n board.
func (c Cell) In(n int) bool {
	return c.Row >= 0 && c.Row < n && c.Col >= 0 && c.Col < n
}

// MarshalJSON encodes the cell as a two-element array.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON decodes a two-element array.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var rc []int
	if err := json.Unmarshal(data, &rc); err != nil {
		return fmt.Errorf("cell: %w", err)
	}
	if len(rc) != 2 {
		return fmt.Errorf("cell: expected [row, col], got %d values", len(rc))
	}
	c.Row, c.Col = rc[0], rc[1]
	return nil
}

// ParseCell parses the "row,col" form produced by String.
func ParseCell(s string) (Cell, error) {
	r, c, ok := strings.Cut(s, ",")
	if !ok {
		return Cell{}, fmt.Errorf("cell %q: missing comma", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(r))
	if err != nil {
		return Cell{}, fmt.Errorf("cell %q: %w", s, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(c))
	if err != nil {
		return Cell{}, fmt.Errorf("cell %q: %w", s, err)
	}
	return Cell{Row: row, Col: col}, nil
}

// Ptr returns a pointer to a copy of c.
func (c Cell) Ptr() *Cell {
	return &c
}

// Equal reports whether two optional cells are the same.
func Equal(a, b *Cell) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Rect is the board's bounding rectangle in viewport pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether p lies in the closed rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// CenteredSquare returns the largest square centred in a w×h viewport.
func CenteredSquare(w, h float64) Rect {
	side := math.Min(w, h)
	return Rect{X: (w - side) / 2, Y: (h - side) / 2, W: side, H: side}
}
