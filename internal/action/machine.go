package action

import (
	"time"

	"github.com/ayusman/gestureboard/internal/board"
)

// Config holds the state machine timing and hover parameters.
type Config struct {
	// Cooldown suppresses transition actions that follow the previous one
	// too closely.
	Cooldown time.Duration `yaml:"cooldown" env:"COOLDOWN"`

	// HoverWindow is the number of recent open-hand cells considered.
	HoverWindow int `yaml:"hover_window" env:"HOVER_WINDOW"`

	// HoverThreshold is how many times a cell must appear in the window to
	// count as the hovered cell.
	HoverThreshold int `yaml:"hover_threshold" env:"HOVER_THRESHOLD"`
}

// DefaultConfig returns the calibrated machine parameters.
func DefaultConfig() Config {
	return Config{
		Cooldown:       200 * time.Millisecond,
		HoverWindow:    10,
		HoverThreshold: 2,
	}
}

// Input is one frame's worth of state for the machine.
type Input struct {
	// Cell is the board cell under the hand, nil when off the board.
	Cell *board.Cell
	// Changed is true on the frame where the hand state flipped.
	Changed bool
	// Open is the hand state after this frame.
	Open bool
}

// Machine owns the selection and hover state for one pipeline. It emits at
// most one action per Step. Not safe for concurrent use.
type Machine struct {
	cfg Config

	selected  *board.Cell
	lastValid *board.Cell

	hovers    []*board.Cell
	lastHover *board.Cell

	lastAction time.Time
}

// NewMachine returns a machine with no selection.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg:    cfg,
		hovers: make([]*board.Cell, 0, cfg.HoverWindow),
	}
}

// Step advances the machine by one frame and returns the action to emit, or
// nil.
func (m *Machine) Step(now time.Time, in Input) Action {
	if in.Changed {
		if !m.lastAction.IsZero() && now.Sub(m.lastAction) < m.cfg.Cooldown {
			return nil
		}
		var a Action
		if in.Open {
			a = m.release(in.Cell)
		} else {
			a = m.press(in.Cell)
		}
		if a != nil {
			m.lastAction = now
		}
		return a
	}

	if !in.Open {
		if in.Cell != nil {
			m.lastValid = in.Cell.Ptr()
		}
		return nil
	}
	return m.hover(in.Cell)
}

func (m *Machine) press(cell *board.Cell) Action {
	m.hovers = m.hovers[:0]
	m.lastValid = nil
	if cell != nil {
		m.lastValid = cell.Ptr()
	}
	if m.selected != nil || cell == nil {
		return nil
	}
	m.selected = cell.Ptr()
	return Select{Cell: *cell}
}

func (m *Machine) release(cell *board.Cell) Action {
	target := cell
	if target == nil {
		target = m.lastValid
	}
	m.lastValid = nil

	if m.selected == nil {
		if target == nil {
			return nil
		}
		m.selected = target.Ptr()
		return Select{Cell: *target}
	}

	if cell == nil {
		m.selected = nil
		return Cancel{}
	}
	if *cell == *m.selected {
		return nil
	}
	from := *m.selected
	m.selected = nil
	return Move{From: from, To: *cell}
}

func (m *Machine) hover(cell *board.Cell) Action {
	if len(m.hovers) == m.cfg.HoverWindow && len(m.hovers) > 0 {
		copy(m.hovers, m.hovers[1:])
		m.hovers = m.hovers[:len(m.hovers)-1]
	}
	var entry *board.Cell
	if cell != nil {
		entry = cell.Ptr()
	}
	m.hovers = append(m.hovers, entry)

	stable := m.stableHover(cell)
	if stable == nil || board.Equal(stable, m.lastHover) {
		return nil
	}
	m.lastHover = stable
	return Hover{Cell: *stable}
}

// stableHover returns cell when it appears at least min(HoverThreshold,
// len) times in the hover window.
func (m *Machine) stableHover(cell *board.Cell) *board.Cell {
	if cell == nil {
		return nil
	}
	need := min(m.cfg.HoverThreshold, len(m.hovers))
	n := 0
	for _, c := range m.hovers {
		if c != nil && *c == *cell {
			n++
		}
	}
	if n < need {
		return nil
	}
	return cell.Ptr()
}

// Lost handles a frame without a usable detection. Hover continuity is
// reset; the selection is kept.
func (m *Machine) Lost() {
	m.hovers = m.hovers[:0]
	m.lastHover = nil
}

// Sync overwrites the selection, typically to match the game engine after
// it adjudicated an action. A nil cell clears the selection.
func (m *Machine) Sync(cell *board.Cell) {
	if cell == nil {
		m.selected = nil
		return
	}
	m.selected = cell.Ptr()
}

// Selected returns a copy of the current selection, or nil.
func (m *Machine) Selected() *board.Cell {
	if m.selected == nil {
		return nil
	}
	return m.selected.Ptr()
}

// Hovered returns the last emitted hover cell, or nil.
func (m *Machine) Hovered() *board.Cell {
	if m.lastHover == nil {
		return nil
	}
	return m.lastHover.Ptr()
}

// Reset clears all state including the selection and the cooldown clock.
func (m *Machine) Reset() {
	m.selected = nil
	m.lastValid = nil
	m.hovers = m.hovers[:0]
	m.lastHover = nil
	m.lastAction = time.Time{}
}
