// Package detector finds the controlling hand or marker in a camera frame.
// Strategies share one output contract: at most one Observation per frame.
package detector

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/handstate"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/scoring"
)

var (
	// ErrUnknownStrategy is returned by New for an unrecognised strategy.
	ErrUnknownStrategy = errors.New("unknown detector strategy")

	// ErrServiceNotFound is returned when the landmark service script
	// cannot be located.
	ErrServiceNotFound = errors.New("landmark service script not found")
)

// Strategy names accepted by New.
const (
	StrategyAuto      = "auto"
	StrategyMarker    = "marker"
	StrategyLandmark  = "landmark"
	StrategySimulated = "simulated"
)

// Observation is one detection in a frame.
type Observation struct {
	// Position is the detection centre in normalized [0,1]² frame
	// coordinates.
	Position board.Point `json:"position"`

	// Confidence is the strategy's own confidence before temporal scoring.
	Confidence float64 `json:"confidence"`

	// Scores holds the geometric, color and uniformity sub-scores. The
	// temporal sub-score is filled in by the pipeline.
	Scores scoring.Scores `json:"scores"`

	// Openness is the raw open/closed signal.
	Openness handstate.Openness `json:"openness"`

	// Area is the detection's area in frame pixels, 0 when unknown.
	Area float64 `json:"area"`

	// Landmarks is set by landmark-based strategies.
	Landmarks *HandLandmarks `json:"landmarks,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Detector finds at most one hand or marker per frame. Detect returns nil
// with a nil error when nothing plausible is in view; errors are reserved
// for strategy failures.
type Detector interface {
	Detect(frame *gocv.Mat) (*Observation, error)
	Name() string
	Close() error
}

// Anchored is implemented by detectors that prefer candidates near the last
// accepted position. The anchor is in normalized frame coordinates; nil
// clears it.
type Anchored interface {
	SetAnchor(p *board.Point)
}

// Config selects and configures a detection strategy.
type Config struct {
	Strategy  string          `yaml:"strategy" env:"STRATEGY"`
	Marker    MarkerConfig    `yaml:"marker" envPrefix:"MARKER_"`
	Landmark  LandmarkConfig  `yaml:"landmark" envPrefix:"LANDMARK_"`
	Simulated SimulatedConfig `yaml:"simulated" envPrefix:"SIMULATED_"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyAuto,
		Marker:    MarkerConfig{Preset: PresetRed},
		Landmark:  DefaultLandmarkConfig(),
		Simulated: SimulatedConfig{Width: 640, Height: 480},
	}
}

// New builds the detector named by cfg.Strategy. The auto strategy uses the
// landmark service when its script is installed and falls back to the
// simulated detector otherwise.
func New(cfg Config) (Detector, error) {
	switch cfg.Strategy {
	case StrategyMarker:
		return NewMarkerDetector(cfg.Marker)
	case StrategyLandmark:
		return NewLandmarkDetector(cfg.Landmark)
	case StrategySimulated:
		return NewSimulatedDetector(cfg.Simulated), nil
	case StrategyAuto, "":
		d, err := NewLandmarkDetector(cfg.Landmark)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		log.Warn("landmark service unavailable, using simulated detector", "error", err)
		return NewSimulatedDetector(cfg.Simulated), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}
