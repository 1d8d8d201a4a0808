package scoring

import (
	"errors"
	"math"
	"testing"
)

func TestScorerCombine(t *testing.T) {
	s := NewScorer(DefaultConfig())

	conf, err := s.Score(Scores{Geometric: 1, Color: 1, Uniformity: 1, Temporal: 1})
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	if math.Abs(conf-1) > 1e-9 {
		t.Errorf("expected confidence 1, got %v", conf)
	}

	conf, err = s.Score(Scores{Geometric: 0.8, Color: 0.6, Uniformity: 0.5, Temporal: 0.9})
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	want := 0.35*0.8 + 0.25*0.6 + 0.15*0.5 + 0.25*0.9
	if math.Abs(conf-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, conf)
	}
}

func TestScorerRejects(t *testing.T) {
	s := NewScorer(DefaultConfig())

	tests := []struct {
		name string
		sc   Scores
		want error
	}{
		{"geometric below floor", Scores{0.2, 1, 1, 1}, ErrSubScoreFloor},
		{"temporal below floor", Scores{1, 1, 1, 0.29}, ErrSubScoreFloor},
		{"all at floor", Scores{0.3, 0.3, 0.3, 0.3}, ErrLowConfidence},
		{"combined low", Scores{0.4, 0.4, 0.4, 0.4}, ErrLowConfidence},
		{"NaN color", Scores{1, math.NaN(), 1, 1}, ErrSubScoreFloor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Score(tt.sc)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.Weights.Color = 0.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1")
	}
}

func TestSubScores(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"circle circularity", Circularity(math.Pi*100, 2*math.Pi*10), 1},
		{"zero perimeter", Circularity(10, 0), 0},
		{"convexity", Convexity(50, 100), 0.5},
		{"convexity no hull", Convexity(50, 0), 0},
		{"geometric ideal", Geometric(1, 1, 1200, 1200), 1},
		{"geometric double area", Geometric(1, 1, 2400, 1200), 0.7},
		{"color pure bright", Color(1, 255, 255), 1},
		{"color half", Color(0.5, 255, 0), 0.35},
		{"uniform flat", Uniformity(0), 1},
		{"uniform noisy", Uniformity(128), 0},
		{"uniform mid", Uniformity(32), 0.5},
		{"temporal still", Temporal(0, 160, 0), 1},
		{"temporal max jump", Temporal(160, 160, 0), 0.4},
		{"temporal no limit", Temporal(500, 0, 1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}
