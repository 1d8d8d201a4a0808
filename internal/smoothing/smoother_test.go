package smoothing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ayusman/gestureboard/internal/board"
)

func TestKalmanConvergesOnStillTarget(t *testing.T) {
	target := board.Point{X: 320, Y: 240}
	k := NewKalman(board.Point{X: 300, Y: 260}, 1, 16)

	var p board.Point
	for i := 0; i < 50; i++ {
		k.Correct(target)
		p = k.Predict()
	}
	if d := p.Dist(target); d > 1 {
		t.Errorf("expected convergence within 1px, got %.2f at %+v", d, p)
	}
}

func TestKalmanTracksVelocity(t *testing.T) {
	k := NewKalman(board.Point{X: 0, Y: 0}, 1, 16)
	for i := 1; i <= 60; i++ {
		k.Correct(board.Point{X: float64(5 * i), Y: float64(-2 * i)})
		k.Predict()
	}
	v := k.Velocity()
	if math.Abs(v.X-5) > 0.5 || math.Abs(v.Y+2) > 0.5 {
		t.Errorf("expected velocity near (5,-2), got %+v", v)
	}
}

func TestSmootherSeedsOnFirstObservation(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	out := s.Update(board.Point{X: 100, Y: 200}, 0.9, 0)

	if out.Position != (board.Point{X: 100, Y: 200}) {
		t.Errorf("expected seeded position, got %+v", out.Position)
	}
	if out.Confidence != 0.9 {
		t.Errorf("expected confidence passthrough, got %v", out.Confidence)
	}
	if out.Stable {
		t.Error("expected unstable after one observation")
	}
}

func TestSmootherStability(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	r := rand.New(rand.NewSource(1))

	var out Smoothed
	for i := 0; i < 20; i++ {
		p := board.Point{X: 320 + r.Float64()*4 - 2, Y: 240 + r.Float64()*4 - 2}
		out = s.Update(p, 0.8, 1000)
	}
	if !out.Stable {
		t.Error("expected stable for jitter within 2px")
	}

	for i := 0; i < 8; i++ {
		out = s.Update(board.Point{X: 320 + float64(i)*30, Y: 240}, 0.8, 1000)
	}
	if out.Stable {
		t.Error("expected unstable for a fast sweep")
	}
}

func TestSmootherMiss(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)
	s.Update(board.Point{X: 10, Y: 10}, 0.9, 0)

	s.Miss()
	if _, ok := s.Last(); ok {
		t.Error("expected history cleared after a miss")
	}
	if !s.Seeded() {
		t.Error("expected filter to survive a single miss")
	}

	for i := 1; i < cfg.MaxMisses; i++ {
		s.Miss()
	}
	if s.Seeded() {
		t.Errorf("expected filter discarded after %d misses", cfg.MaxMisses)
	}

	out := s.Update(board.Point{X: 500, Y: 400}, 0.7, 0)
	if out.Position != (board.Point{X: 500, Y: 400}) {
		t.Errorf("expected reseed at new position, got %+v", out.Position)
	}
}

func TestTemporalScore(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	if got := s.TemporalScore(board.Point{X: 1, Y: 1}, 100, 160); got != 1 {
		t.Errorf("expected 1 with no history, got %v", got)
	}

	s.Update(board.Point{X: 100, Y: 100}, 0.9, 1000)

	near := s.TemporalScore(board.Point{X: 100, Y: 100}, 1000, 160)
	far := s.TemporalScore(board.Point{X: 260, Y: 100}, 1000, 160)
	resized := s.TemporalScore(board.Point{X: 100, Y: 100}, 3000, 160)

	if math.Abs(near-1) > 1e-9 {
		t.Errorf("expected 1 for no movement, got %v", near)
	}
	if math.Abs(far-0.4) > 1e-9 {
		t.Errorf("expected 0.4 at max jump, got %v", far)
	}
	if math.Abs(resized-0.6) > 1e-9 {
		t.Errorf("expected 0.6 for doubled area variation, got %v", resized)
	}
}

func TestSmootherReset(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	s.Update(board.Point{X: 10, Y: 10}, 0.9, 0)
	s.Reset()
	if s.Seeded() {
		t.Error("expected unseeded after reset")
	}
	if _, ok := s.Last(); ok {
		t.Error("expected empty history after reset")
	}
}
