package board

import "math"

// Mapper converts viewport positions to board cells. It is stateless; the
// zero value is not usable, build one with NewMapper.
type Mapper struct {
	size   int
	bounds Rect
}

// NewMapper returns a mapper for an n×n board inside bounds.
func NewMapper(n int, bounds Rect) Mapper {
	if n <= 0 {
		n = Size
	}
	return Mapper{size: n, bounds: bounds}
}

// Bounds returns the board rectangle.
func (m Mapper) Bounds() Rect {
	return m.bounds
}

// N returns the number of cells per side.
func (m Mapper) N() int {
	return m.size
}

// Locate returns the cell under p. Positions outside the closed bounds
// rectangle report false. A position exactly on a shared edge, or on the far
// edge, belongs to the lower-index cell.
func (m Mapper) Locate(p Point) (Cell, bool) {
	if m.bounds.Empty() || !m.bounds.Contains(p) {
		return Cell{}, false
	}
	col := index(p.X-m.bounds.X, m.bounds.W, m.size)
	row := index(p.Y-m.bounds.Y, m.bounds.H, m.size)
	return Cell{Row: row, Col: col}, true
}

// Cell is Locate returning nil when p is off the board.
func (m Mapper) Cell(p Point) *Cell {
	c, ok := m.Locate(p)
	if !ok {
		return nil
	}
	return &c
}

// Center returns the centre of c in viewport pixels.
func (m Mapper) Center(c Cell) Point {
	cw := m.bounds.W / float64(m.size)
	ch := m.bounds.H / float64(m.size)
	return Point{
		X: m.bounds.X + (float64(c.Col)+0.5)*cw,
		Y: m.bounds.Y + (float64(c.Row)+0.5)*ch,
	}
}

// CellRect returns the rectangle covered by c.
func (m Mapper) CellRect(c Cell) Rect {
	cw := m.bounds.W / float64(m.size)
	ch := m.bounds.H / float64(m.size)
	return Rect{
		X: m.bounds.X + float64(c.Col)*cw,
		Y: m.bounds.Y + float64(c.Row)*ch,
		W: cw,
		H: ch,
	}
}

func index(offset, extent float64, n int) int {
	v := offset / extent * float64(n)
	i := int(math.Floor(v))
	if v == float64(i) && i > 0 {
		i--
	}
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
