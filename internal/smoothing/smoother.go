// Package smoothing denoises detected hand positions with a recursive
// constant-velocity filter and tracks short-term stability.
package smoothing

import (
	"math"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/scoring"
)

// Config holds the smoother parameters.
type Config struct {
	ProcessNoise     float64 `yaml:"process_noise" env:"PROCESS_NOISE"`
	MeasurementNoise float64 `yaml:"measurement_noise" env:"MEASUREMENT_NOISE"`
	// History is the number of smoothed positions kept for stability.
	History int `yaml:"history" env:"HISTORY"`
	// StableThreshold is the maximum deviation from the mean, in pixels,
	// for the history to count as stable.
	StableThreshold float64 `yaml:"stable_threshold" env:"STABLE_THRESHOLD"`
	// MaxMisses is the number of consecutive missed frames after which the
	// filter is discarded and reseeded on the next detection.
	MaxMisses int `yaml:"max_misses" env:"MAX_MISSES"`
}

// DefaultConfig returns the calibrated smoother parameters.
func DefaultConfig() Config {
	return Config{
		ProcessNoise:     1.0,
		MeasurementNoise: 16.0,
		History:          8,
		StableThreshold:  12,
		MaxMisses:        10,
	}
}

// Smoothed is the output of one Update.
type Smoothed struct {
	Position   board.Point `json:"position"`
	Confidence float64     `json:"confidence"`
	Stable     bool        `json:"stable"`
}

// Smoother owns the filter state for one pipeline. Not safe for concurrent
// use.
type Smoother struct {
	cfg    Config
	kf     *Kalman
	hist   []board.Point
	areas  []float64
	misses int
}

// NewSmoother returns an unseeded smoother.
func NewSmoother(cfg Config) *Smoother {
	if cfg.History <= 0 {
		cfg.History = DefaultConfig().History
	}
	return &Smoother{
		cfg:   cfg,
		hist:  make([]board.Point, 0, cfg.History),
		areas: make([]float64, 0, cfg.History),
	}
}

// Update corrects the filter with an accepted observation, predicts one step
// and returns the predicted position with the observation's confidence. The
// first observation after a reset seeds the filter. area may be zero when
// the detector does not report one.
func (s *Smoother) Update(p board.Point, confidence, area float64) Smoothed {
	s.misses = 0

	var out board.Point
	if s.kf == nil {
		s.kf = NewKalman(p, s.cfg.ProcessNoise, s.cfg.MeasurementNoise)
		out = s.kf.Predict()
	} else {
		s.kf.Correct(p)
		out = s.kf.Predict()
	}

	s.hist = pushPoint(s.hist, out, s.cfg.History)
	if area > 0 {
		s.areas = pushFloat(s.areas, area, s.cfg.History)
	}

	return Smoothed{
		Position:   out,
		Confidence: confidence,
		Stable:     s.Stable(),
	}
}

// Miss records a frame without an accepted observation. Stability history
// is cleared immediately; the filter itself survives until MaxMisses
// consecutive misses.
func (s *Smoother) Miss() {
	s.hist = s.hist[:0]
	s.areas = s.areas[:0]
	s.misses++
	if s.cfg.MaxMisses > 0 && s.misses >= s.cfg.MaxMisses {
		s.kf = nil
	}
}

// Stable reports whether every position in the history lies within
// StableThreshold of the history mean. At least half the history must be
// filled.
func (s *Smoother) Stable() bool {
	if len(s.hist) == 0 || len(s.hist) < (s.cfg.History+1)/2 {
		return false
	}
	var mean board.Point
	for _, p := range s.hist {
		mean.X += p.X
		mean.Y += p.Y
	}
	n := float64(len(s.hist))
	mean.X /= n
	mean.Y /= n

	for _, p := range s.hist {
		if p.Dist(mean) >= s.cfg.StableThreshold {
			return false
		}
	}
	return true
}

// TemporalScore rates a candidate position and area against the recent
// history. With no history the score is 1.
func (s *Smoother) TemporalScore(p board.Point, area, maxJump float64) float64 {
	if len(s.hist) == 0 {
		return 1
	}
	jump := p.Dist(s.hist[len(s.hist)-1])

	variation := 0.0
	if area > 0 && len(s.areas) > 0 {
		var mean float64
		for _, a := range s.areas {
			mean += a
		}
		mean /= float64(len(s.areas))
		if mean > 0 {
			variation = math.Abs(area-mean) / mean
		}
	}
	return scoring.Temporal(jump, maxJump, variation)
}

// Last returns the most recent smoothed position.
func (s *Smoother) Last() (board.Point, bool) {
	if len(s.hist) == 0 {
		return board.Point{}, false
	}
	return s.hist[len(s.hist)-1], true
}

// Seeded reports whether the filter currently holds a state.
func (s *Smoother) Seeded() bool {
	return s.kf != nil
}

// Reset discards the filter and all history.
func (s *Smoother) Reset() {
	s.kf = nil
	s.hist = s.hist[:0]
	s.areas = s.areas[:0]
	s.misses = 0
}

func pushPoint(buf []board.Point, p board.Point, max int) []board.Point {
	if len(buf) == max {
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	return append(buf, p)
}

func pushFloat(buf []float64, v float64, max int) []float64 {
	if len(buf) == max {
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	return append(buf, v)
}
