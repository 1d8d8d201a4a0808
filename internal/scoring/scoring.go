// Package scoring combines per-candidate sub-scores into a single detection
// confidence and rejects implausible detections.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrSubScoreFloor is returned when any sub-score is below the floor.
	ErrSubScoreFloor = errors.New("sub-score below floor")

	// ErrLowConfidence is returned when the combined confidence is below
	// the floor.
	ErrLowConfidence = errors.New("confidence below floor")
)

// Scores are the four sub-scores of a detection, each in [0, 1].
type Scores struct {
	Geometric  float64 `json:"geometric"`
	Color      float64 `json:"color"`
	Uniformity float64 `json:"uniformity"`
	Temporal   float64 `json:"temporal"`
}

// Weights are the convex combination weights of the sub-scores.
type Weights struct {
	Geometric  float64 `yaml:"geometric" env:"GEOMETRIC"`
	Color      float64 `yaml:"color" env:"COLOR"`
	Uniformity float64 `yaml:"uniformity" env:"UNIFORMITY"`
	Temporal   float64 `yaml:"temporal" env:"TEMPORAL"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Geometric + w.Color + w.Uniformity + w.Temporal
}

// Config holds scorer thresholds and weights.
type Config struct {
	Weights       Weights `yaml:"weights" envPrefix:"WEIGHT_"`
	SubScoreFloor float64 `yaml:"sub_score_floor" env:"SUB_SCORE_FLOOR"`
	Floor         float64 `yaml:"floor" env:"FLOOR"`
	// MaxJump is the pixel displacement at which the temporal jump score
	// reaches zero.
	MaxJump float64 `yaml:"max_jump" env:"MAX_JUMP"`
}

// DefaultConfig returns the calibrated scorer parameters.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Geometric:  0.35,
			Color:      0.25,
			Uniformity: 0.15,
			Temporal:   0.25,
		},
		SubScoreFloor: 0.3,
		Floor:         0.45,
		MaxJump:       160,
	}
}

// Validate checks that the weights form a convex combination.
func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.3f", c.Weights.Sum())
	}
	for _, w := range []float64{c.Weights.Geometric, c.Weights.Color, c.Weights.Uniformity, c.Weights.Temporal} {
		if w < 0 {
			return fmt.Errorf("weights must be non-negative, got %v", w)
		}
	}
	if c.SubScoreFloor < 0 || c.SubScoreFloor > 1 || c.Floor < 0 || c.Floor > 1 {
		return fmt.Errorf("floors must be in [0, 1]")
	}
	if c.MaxJump <= 0 {
		return fmt.Errorf("max_jump must be positive, got %v", c.MaxJump)
	}
	return nil
}

// Scorer combines sub-scores. It is stateless and safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer returns a scorer using cfg.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score returns the combined confidence. It fails with ErrSubScoreFloor if
// any sub-score is below the floor and with ErrLowConfidence if the combined
// value is. The combined value is returned in both failure cases.
func (s *Scorer) Score(sc Scores) (float64, error) {
	w := s.cfg.Weights
	conf := w.Geometric*clamp01(sc.Geometric) +
		w.Color*clamp01(sc.Color) +
		w.Uniformity*clamp01(sc.Uniformity) +
		w.Temporal*clamp01(sc.Temporal)

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"geometric", sc.Geometric},
		{"color", sc.Color},
		{"uniformity", sc.Uniformity},
		{"temporal", sc.Temporal},
	} {
		if clamp01(f.v) < s.cfg.SubScoreFloor {
			return conf, fmt.Errorf("%w: %s %.2f", ErrSubScoreFloor, f.name, f.v)
		}
	}
	if conf < s.cfg.Floor {
		return conf, fmt.Errorf("%w: %.2f", ErrLowConfidence, conf)
	}
	return conf, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	case math.IsNaN(v):
		return 0
	}
	return v
}
