// Package action turns per-frame cell and hand state updates into discrete
// board actions with press, drag and release semantics.
package action

import "github.com/ayusman/gestureboard/internal/board"

// Kind is the wire name of an action.
type Kind string

const (
	KindHover  Kind = "hover"
	KindSelect Kind = "select_piece"
	KindMove   Kind = "move_piece"
	KindCancel Kind = "cancel"
)

// Kinds lists every action kind.
var Kinds = []Kind{KindHover, KindSelect, KindMove, KindCancel}

// Action is one of Hover, Select, Move or Cancel.
type Action interface {
	Kind() Kind
	isAction()
}

// Hover reports a stable cell under an open hand.
type Hover struct {
	Cell board.Cell
}

// Select picks up the piece at Cell.
type Select struct {
	Cell board.Cell
}

// Move commits a drag from From to To.
type Move struct {
	From board.Cell
	To   board.Cell
}

// Cancel drops the current selection.
type Cancel struct{}

func (Hover) Kind() Kind  { return KindHover }
func (Select) Kind() Kind { return KindSelect }
func (Move) Kind() Kind   { return KindMove }
func (Cancel) Kind() Kind { return KindCancel }

func (Hover) isAction()  {}
func (Select) isAction() {}
func (Move) isAction()   {}
func (Cancel) isAction() {}

// Record is the tagged wire form of an action.
type Record struct {
	Type       Kind        `json:"type"`
	Position   *board.Cell `json:"position,omitempty"`
	From       *board.Cell `json:"from,omitempty"`
	To         *board.Cell `json:"to,omitempty"`
	Confidence float64     `json:"confidence"`
}

// ToRecord converts an action into its wire form.
func ToRecord(a Action, confidence float64) Record {
	r := Record{Type: a.Kind(), Confidence: confidence}
	switch v := a.(type) {
	case Hover:
		r.Position = v.Cell.Ptr()
	case Select:
		r.Position = v.Cell.Ptr()
	case Move:
		r.From = v.From.Ptr()
		r.To = v.To.Ptr()
	}
	return r
}
