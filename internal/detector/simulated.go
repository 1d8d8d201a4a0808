package detector

import (
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/handstate"
	"github.com/ayusman/gestureboard/internal/scoring"
)

// SimulatedConfig sizes the simulated detector when frames carry no
// dimensions.
type SimulatedConfig struct {
	Width  int `yaml:"width" env:"WIDTH"`
	Height int `yaml:"height" env:"HEIGHT"`
}

// simulatedSequence is the repeating open/closed script, advanced every
// three frames: open, grab, release, grab.
var simulatedSequence = func() []bool {
	seq := make([]bool, 0, 24)
	for _, run := range []struct {
		open bool
		n    int
	}{{true, 8}, {false, 4}, {true, 8}, {false, 4}} {
		for i := 0; i < run.n; i++ {
			seq = append(seq, run.open)
		}
	}
	return seq
}()

// SimulatedDetector produces a deterministic hand that hovers around board
// cell (1,0) and periodically grabs. It stands in for a real model when
// none is installed and ignores frame content.
type SimulatedDetector struct {
	cfg   SimulatedConfig
	mu    sync.Mutex
	frame int
}

// NewSimulatedDetector creates a simulated detector.
func NewSimulatedDetector(cfg SimulatedConfig) *SimulatedDetector {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	return &SimulatedDetector{cfg: cfg}
}

// Name returns the strategy name.
func (d *SimulatedDetector) Name() string {
	return StrategySimulated
}

// Detect returns the next simulated observation.
func (d *SimulatedDetector) Detect(frame *gocv.Mat) (*Observation, error) {
	w, h := float64(d.cfg.Width), float64(d.cfg.Height)
	if frame != nil && !frame.Empty() {
		w, h = float64(frame.Cols()), float64(frame.Rows())
	}

	d.mu.Lock()
	n := d.frame
	d.frame++
	d.mu.Unlock()

	return simulate(n, w, h), nil
}

// Close is a no-op for the simulated detector.
func (d *SimulatedDetector) Close() error {
	return nil
}

func simulate(n int, w, h float64) *Observation {
	open := simulatedSequence[(n/3)%len(simulatedSequence)]

	sq := board.CenteredSquare(w, h)
	side := sq.W * 0.8
	bounds := board.Rect{X: (w - side) / 2, Y: (h - side) / 2, W: side, H: side}
	c := board.NewMapper(board.Size, bounds).Center(board.Cell{Row: 1, Col: 0})

	t := float64(n)
	x := c.X + 20*math.Sin(t*0.1)
	y := c.Y + 15*math.Cos(t*0.1)
	x = math.Max(50, math.Min(w-50, x))
	y = math.Max(50, math.Min(h-50, y))

	conf := 0.8 + 0.1*math.Sin(t*0.05)

	openness := handstate.Openness{Fingers: 0, HullRatio: 0.4}
	if open {
		openness = handstate.Openness{Fingers: 3, HullRatio: 0.8}
	}

	return &Observation{
		Position:   board.Point{X: x / w, Y: y / h},
		Confidence: conf,
		Scores: scoring.Scores{
			Geometric:  conf,
			Color:      1,
			Uniformity: 1,
			Temporal:   1,
		},
		Openness:  openness,
		Timestamp: time.Now(),
	}
}
