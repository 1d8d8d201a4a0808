// Package pipeline turns detector observations into board actions. One
// Pipeline holds all per-session gesture state: smoother, hand-state
// classifier, mapper and action machine.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/handstate"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/scoring"
	"github.com/ayusman/gestureboard/internal/smoothing"
)

// Default viewport, in pixels.
const (
	DefaultViewportWidth  = 640
	DefaultViewportHeight = 480
)

// Reason explains why a frame produced no accepted detection.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoDetection   Reason = "no_detection"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonDetectorError Reason = "detector_error"
)

// Config collects the parameters of every pipeline stage.
type Config struct {
	Scoring   scoring.Config
	Smoothing smoothing.Config
	HandState handstate.Config
	Actions   action.Config

	// ViewportWidth and ViewportHeight give the pixel space positions are
	// mapped into.
	ViewportWidth  float64
	ViewportHeight float64

	// Bounds is the board rectangle in viewport pixels. Empty selects the
	// largest centred square.
	Bounds board.Rect
}

// DefaultConfig returns the calibrated pipeline parameters.
func DefaultConfig() Config {
	return Config{
		Scoring:        scoring.DefaultConfig(),
		Smoothing:      smoothing.DefaultConfig(),
		HandState:      handstate.DefaultConfig(),
		Actions:        action.DefaultConfig(),
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
	}
}

// Validate checks every stage's parameters.
func (c Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if err := c.HandState.Validate(); err != nil {
		return fmt.Errorf("hand state: %w", err)
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %vx%v", c.ViewportWidth, c.ViewportHeight)
	}
	return nil
}

// Result is the outcome of one processed frame.
type Result struct {
	// Action is the frame's action, nil when there is none.
	Action action.Action

	Detected bool
	Reason   Reason

	// Position is the smoothed position in viewport pixels. Valid only when
	// Detected.
	Position   board.Point
	Stable     bool
	Confidence float64
	Cell       *board.Cell

	Open      bool
	Changed   bool
	Fingers   int
	HullRatio float64

	Observation *detector.Observation
}

// Pipeline processes frames for one session. Methods may be called from
// several goroutines; frames are processed one at a time.
type Pipeline struct {
	mu sync.Mutex

	cfg        Config
	det        detector.Detector
	scorer     *scoring.Scorer
	smoother   *smoothing.Smoother
	classifier *handstate.Classifier
	machine    *action.Machine
	mapper     board.Mapper
}

// New creates a pipeline around det.
func New(det detector.Detector, cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:        cfg,
		det:        det,
		scorer:     scoring.NewScorer(cfg.Scoring),
		smoother:   smoothing.NewSmoother(cfg.Smoothing),
		classifier: handstate.NewClassifier(cfg.HandState),
		machine:    action.NewMachine(cfg.Actions),
	}
	p.mapper = board.NewMapper(board.Size, p.bounds())
	return p, nil
}

// Detector returns the pipeline's detector.
func (p *Pipeline) Detector() detector.Detector {
	return p.det
}

// Process runs detection on frame and steps the pipeline.
func (p *Pipeline) Process(frame *gocv.Mat, now time.Time) Result {
	obs, err := p.det.Detect(frame)
	if err != nil {
		log.Warn("detector failed", "detector", p.det.Name(), "error", err)
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.lost(ReasonDetectorError, 0)
	}
	return p.Step(obs, now)
}

// Step advances the pipeline with one observation; nil means nothing was
// detected in the frame.
func (p *Pipeline) Step(obs *detector.Observation, now time.Time) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if obs == nil {
		return p.lost(ReasonNoDetection, 0)
	}

	pos := board.Point{
		X: obs.Position.X * p.cfg.ViewportWidth,
		Y: obs.Position.Y * p.cfg.ViewportHeight,
	}

	scores := obs.Scores
	scores.Temporal = p.smoother.TemporalScore(pos, obs.Area, p.cfg.Scoring.MaxJump)
	conf, err := p.scorer.Score(scores)
	if err != nil {
		log.Debug("detection rejected", "error", err, "confidence", conf)
		return p.lost(ReasonLowConfidence, conf)
	}

	sm := p.smoother.Update(pos, conf, obs.Area)
	if a, ok := p.det.(detector.Anchored); ok {
		a.SetAnchor(&board.Point{
			X: sm.Position.X / p.cfg.ViewportWidth,
			Y: sm.Position.Y / p.cfg.ViewportHeight,
		})
	}

	changed := p.classifier.Observe(p.cfg.HandState.Vote(obs.Openness))
	open := p.classifier.IsOpen()
	if changed {
		log.Debug("hand state changed", "open", open)
	}

	cell := p.mapper.Cell(sm.Position)
	act := p.machine.Step(now, action.Input{Cell: cell, Changed: changed, Open: open})
	if act != nil {
		log.Info("action", "kind", act.Kind(), "confidence", conf)
	}

	return Result{
		Action:      act,
		Detected:    true,
		Position:    sm.Position,
		Stable:      sm.Stable,
		Confidence:  conf,
		Cell:        cell,
		Open:        open,
		Changed:     changed,
		Fingers:     obs.Openness.Fingers,
		HullRatio:   obs.Openness.HullRatio,
		Observation: obs,
	}
}

// lost handles a frame without an accepted detection. The selection
// survives; hand state decays and hover and stability history reset.
func (p *Pipeline) lost(reason Reason, conf float64) Result {
	p.classifier.Decay()
	p.machine.Lost()
	p.smoother.Miss()
	if a, ok := p.det.(detector.Anchored); ok && !p.smoother.Seeded() {
		a.SetAnchor(nil)
	}
	return Result{
		Reason:     reason,
		Confidence: conf,
		Open:       p.classifier.IsOpen(),
	}
}

// Sync overwrites the selection to match the game engine.
func (p *Pipeline) Sync(cell *board.Cell) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.machine.Sync(cell)
}

// Selected returns the current selection.
func (p *Pipeline) Selected() *board.Cell {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Selected()
}

// Hovered returns the last hovered cell.
func (p *Pipeline) Hovered() *board.Cell {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Hovered()
}

// SetViewport changes the pixel space positions are mapped into. Unless
// explicit bounds are set, the board follows as the centred square.
func (p *Pipeline) SetViewport(w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.ViewportWidth, p.cfg.ViewportHeight = w, h
	p.mapper = board.NewMapper(board.Size, p.bounds())
	p.smoother.Reset()
}

// SetBounds sets the board rectangle in viewport pixels. An empty rect
// restores the centred square.
func (p *Pipeline) SetBounds(r board.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Bounds = r
	p.mapper = board.NewMapper(board.Size, p.bounds())
}

// Mapper returns the current coordinate mapper.
func (p *Pipeline) Mapper() board.Mapper {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapper
}

// Viewport returns the viewport size in pixels.
func (p *Pipeline) Viewport() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.ViewportWidth, p.cfg.ViewportHeight
}

// Reset clears all gesture state, including the selection.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.smoother.Reset()
	p.classifier.Reset()
	p.machine.Reset()
	if a, ok := p.det.(detector.Anchored); ok {
		a.SetAnchor(nil)
	}
}

// Close releases the detector.
func (p *Pipeline) Close() error {
	return p.det.Close()
}

func (p *Pipeline) bounds() board.Rect {
	if !p.cfg.Bounds.Empty() {
		return p.cfg.Bounds
	}
	return board.CenteredSquare(p.cfg.ViewportWidth, p.cfg.ViewportHeight)
}
