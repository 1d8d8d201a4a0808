// Package handstate turns a noisy per-frame openness signal into a
// hysteretic OPEN/CLOSED hand state.
package handstate

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid hand state config")

// Config holds the classifier hysteresis parameters.
type Config struct {
	// Window is the number of raw votes retained.
	Window int `yaml:"window" env:"WINDOW"`

	// StabilityFrames is how many of the most recent votes are inspected
	// before a transition.
	StabilityFrames int `yaml:"stability_frames" env:"STABILITY_FRAMES"`

	// ThresholdFrac is the fraction of those votes that must agree on the
	// opposite state. Must be greater than 0.5.
	ThresholdFrac float64 `yaml:"threshold_frac" env:"THRESHOLD_FRAC"`

	// MinOpenFingers is the extended finger count at which a hand votes open.
	MinOpenFingers int `yaml:"min_open_fingers" env:"MIN_OPEN_FINGERS"`

	// HullOpenRatio is the hull occupancy ratio above which a hand votes
	// open when no finger count is available.
	HullOpenRatio float64 `yaml:"hull_open_ratio" env:"HULL_OPEN_RATIO"`
}

// DefaultConfig returns the calibrated classifier parameters.
func DefaultConfig() Config {
	return Config{
		Window:          15,
		StabilityFrames: 4,
		ThresholdFrac:   0.75,
		MinOpenFingers:  2,
		HullOpenRatio:   0.65,
	}
}

// Validate checks the parameters for consistency.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, c.Window)
	}
	if c.StabilityFrames <= 0 || c.StabilityFrames > c.Window {
		return fmt.Errorf("%w: stability_frames must be in [1, %d], got %d", ErrInvalidConfig, c.Window, c.StabilityFrames)
	}
	if c.ThresholdFrac <= 0.5 || c.ThresholdFrac > 1 {
		return fmt.Errorf("%w: threshold_frac must be in (0.5, 1], got %v", ErrInvalidConfig, c.ThresholdFrac)
	}
	return nil
}

// Openness is the raw openness signal of one observation. Fingers is the
// extended finger count, or -1 when the detector cannot count fingers.
type Openness struct {
	Fingers   int     `json:"fingers"`
	HullRatio float64 `json:"hull_ratio"`
}

// Vote reports whether o counts as an open hand under c.
func (c Config) Vote(o Openness) bool {
	if o.Fingers >= 0 {
		return o.Fingers >= c.MinOpenFingers
	}
	return o.HullRatio > c.HullOpenRatio
}

// Classifier holds the binary hand state and its vote window. It starts
// OPEN. Not safe for concurrent use.
type Classifier struct {
	cfg   Config
	votes []bool
	open  bool
}

// NewClassifier returns a classifier in the OPEN state.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:   cfg,
		votes: make([]bool, 0, cfg.Window),
		open:  true,
	}
}

// IsOpen returns the current state.
func (c *Classifier) IsOpen() bool {
	return c.open
}

// Observe records a vote and reports whether the state flipped on this
// frame. A flip requires at least ThresholdFrac of the last StabilityFrames
// votes to agree on the opposite state; the window is cleared afterwards.
func (c *Classifier) Observe(open bool) bool {
	if len(c.votes) == c.cfg.Window {
		copy(c.votes, c.votes[1:])
		c.votes = c.votes[:len(c.votes)-1]
	}
	c.votes = append(c.votes, open)

	n := c.cfg.StabilityFrames
	if len(c.votes) < n {
		return false
	}

	opposite := 0
	for _, v := range c.votes[len(c.votes)-n:] {
		if v != c.open {
			opposite++
		}
	}
	if float64(opposite) < c.cfg.ThresholdFrac*float64(n) {
		return false
	}

	c.open = !c.open
	c.votes = c.votes[:0]
	return true
}

// Decay drops the oldest vote. Called on frames without a detection so that
// a stale window drains toward neutral instead of firing later.
func (c *Classifier) Decay() {
	if len(c.votes) == 0 {
		return
	}
	copy(c.votes, c.votes[1:])
	c.votes = c.votes[:len(c.votes)-1]
}

// OpenRatio returns the fraction of open votes in the window, or 0.5 when
// the window is empty.
func (c *Classifier) OpenRatio() float64 {
	if len(c.votes) == 0 {
		return 0.5
	}
	n := 0
	for _, v := range c.votes {
		if v {
			n++
		}
	}
	return float64(n) / float64(len(c.votes))
}

// Votes returns the number of votes in the window.
func (c *Classifier) Votes() int {
	return len(c.votes)
}

// Reset returns the classifier to OPEN with an empty window.
func (c *Classifier) Reset() {
	c.votes = c.votes[:0]
	c.open = true
}
