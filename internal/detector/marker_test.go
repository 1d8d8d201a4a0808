package detector

import (
	"image"
	"math"
	"testing"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/testdata"
)

func newRedDetector(t *testing.T) *MarkerDetector {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}
	d, err := NewMarkerDetector(MarkerConfig{Preset: PresetRed})
	if err != nil {
		t.Fatalf("NewMarkerDetector failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMarkerDetector_Disc(t *testing.T) {
	d := newRedDetector(t)

	frame := testdata.MarkerAt(200, 150, 20)
	defer frame.Close()

	obs, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if obs == nil {
		t.Fatal("expected a detection")
	}

	if math.Abs(obs.Position.X-200.0/640) > 0.01 || math.Abs(obs.Position.Y-150.0/480) > 0.01 {
		t.Errorf("expected position near (0.3125, 0.3125), got %+v", obs.Position)
	}
	if obs.Area < 1000 || obs.Area > 1400 {
		t.Errorf("expected area near 1250, got %f", obs.Area)
	}
	if obs.Scores.Geometric < 0.8 {
		t.Errorf("expected high geometric score, got %f", obs.Scores.Geometric)
	}
	if obs.Scores.Color < 0.8 {
		t.Errorf("expected high color score, got %f", obs.Scores.Color)
	}
	if obs.Scores.Uniformity < 0.9 {
		t.Errorf("expected flat disc to be uniform, got %f", obs.Scores.Uniformity)
	}
	if obs.Openness.Fingers != -1 {
		t.Errorf("expected no finger count for a marker, got %d", obs.Openness.Fingers)
	}
	if obs.Openness.HullRatio < 0.9 {
		t.Errorf("expected a disc to fill its hull, got %f", obs.Openness.HullRatio)
	}
}

func TestMarkerDetector_NoMarker(t *testing.T) {
	d := newRedDetector(t)

	tests := []struct {
		name  string
		discs []testdata.Disc
	}{
		{"blank", nil},
		{"wrong color", []testdata.Disc{{Center: image.Pt(300, 200), Radius: 25, Color: testdata.Green}}},
		{"too small", []testdata.Disc{{Center: image.Pt(300, 200), Radius: 3, Color: testdata.Red}}},
		{"too large", []testdata.Disc{{Center: image.Pt(320, 240), Radius: 90, Color: testdata.Red}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := testdata.Frame(640, 480, tt.discs...)
			defer frame.Close()

			obs, err := d.Detect(frame)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if obs != nil {
				t.Errorf("expected no detection, got %+v", obs)
			}
		})
	}
}

func TestMarkerDetector_AnchorTieBreak(t *testing.T) {
	d := newRedDetector(t)

	frame := testdata.Frame(640, 480,
		testdata.Disc{Center: image.Pt(120, 200), Radius: 20, Color: testdata.Red},
		testdata.Disc{Center: image.Pt(500, 200), Radius: 20, Color: testdata.Red},
	)
	defer frame.Close()

	for _, anchorX := range []float64{120, 500} {
		d.SetAnchor(&board.Point{X: anchorX / 640, Y: 200.0 / 480})
		obs, err := d.Detect(frame)
		if err != nil || obs == nil {
			t.Fatalf("Detect failed: %v, %v", obs, err)
		}
		if math.Abs(obs.Position.X*640-anchorX) > 5 {
			t.Errorf("expected the disc at x=%.0f, got x=%.1f", anchorX, obs.Position.X*640)
		}
	}
}

func TestMarkerDetector_AreaRange(t *testing.T) {
	d := newRedDetector(t)

	if err := d.SetAreaRange(500, 100); err == nil {
		t.Error("expected error for inverted range")
	}
	if err := d.SetAreaRange(2000, 5000); err != nil {
		t.Fatalf("SetAreaRange failed: %v", err)
	}

	frame := testdata.MarkerAt(320, 240, 20)
	defer frame.Close()
	obs, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if obs != nil {
		t.Error("expected the calibrated range to reject a small disc")
	}

	min, max := d.AreaRange()
	if min != 2000 || max != 5000 {
		t.Errorf("expected [2000, 5000], got [%v, %v]", min, max)
	}
}

func TestMarkerDetector_EmptyFrame(t *testing.T) {
	d := newRedDetector(t)
	obs, err := d.Detect(nil)
	if obs != nil || err != nil {
		t.Errorf("expected nil, nil for a nil frame, got %v, %v", obs, err)
	}
}
