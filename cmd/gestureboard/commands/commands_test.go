package commands

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/store"
	"github.com/ayusman/gestureboard/testdata"
)

func TestBoardURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1:9090", "http://127.0.0.1:9090"},
		{"[::]:8080", "http://localhost:8080"},
		{"example.local", "http://example.local"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := boardURL(tt.addr); got != tt.want {
				t.Errorf("boardURL(%q) = %s, want %s", tt.addr, got, tt.want)
			}
		})
	}
}

func newCalibrator(t *testing.T, areas map[int]float64) (*calibrator, *store.Store, *bytes.Buffer) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	out := &bytes.Buffer{}
	n := 0
	c := &calibrator{
		in:    bufio.NewReader(strings.NewReader("\n\n\n\n")),
		out:   out,
		store: st,
		measure: func() (float64, error) {
			a, ok := areas[n]
			n++
			if !ok {
				return 0, ErrNoMarker
			}
			return a, nil
		},
	}
	return c, st, out
}

func TestCalibrator_Run(t *testing.T) {
	// area = 200000/d² + 20
	c, st, out := newCalibrator(t, map[int]float64{0: 242.2222222222, 1: 100, 2: 51.25})

	fit, err := c.run([]float64{30, 50, 80}, false)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if math.Abs(fit.A-200000) > 1 || math.Abs(fit.B-20) > 0.01 {
		t.Errorf("fit = a %.2f b %.2f, want a 200000 b 20", fit.A, fit.B)
	}
	if strings.Count(out.String(), "press Enter") != 3 {
		t.Errorf("expected three prompts, got %q", out.String())
	}

	var stored detector.AreaFit
	if err := st.Settings().GetJSON(store.CalibrationFitKey, &stored); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if stored != fit {
		t.Errorf("stored fit = %+v, want %+v", stored, fit)
	}
	points, _ := st.Calibration().Points()
	if len(points) != 3 {
		t.Errorf("len(points) = %d, want 3", len(points))
	}
}

func TestCalibrator_Errors(t *testing.T) {
	t.Run("measurement failure", func(t *testing.T) {
		c, _, _ := newCalibrator(t, map[int]float64{0: 100})
		if _, err := c.run([]float64{30, 50}, false); !errors.Is(err, ErrNoMarker) {
			t.Errorf("run() error = %v, want ErrNoMarker", err)
		}
	})

	t.Run("too few points", func(t *testing.T) {
		c, _, _ := newCalibrator(t, map[int]float64{0: 242, 1: 100})
		if _, err := c.run([]float64{30, 50}, false); !errors.Is(err, detector.ErrNotEnoughSamples) {
			t.Errorf("run() error = %v, want ErrNotEnoughSamples", err)
		}
	})

	t.Run("invalid distance", func(t *testing.T) {
		c, _, _ := newCalibrator(t, nil)
		if _, err := c.run([]float64{-5}, false); err == nil {
			t.Error("expected an error for a negative distance")
		}
	})
}

func TestCalibrator_Clear(t *testing.T) {
	c, st, _ := newCalibrator(t, map[int]float64{0: 242.2222222222, 1: 100, 2: 51.25})
	if err := st.Calibration().AddPoint(&store.CalibrationPoint{DistanceCM: 200, Area: 5}); err != nil {
		t.Fatal(err)
	}

	fit, err := c.run([]float64{30, 50, 80}, true)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if fit.Points != 3 {
		t.Errorf("fit points = %d, want 3 after clear", fit.Points)
	}
}

func TestMeasureArea(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that needs OpenCV")
	}

	frames := []*gocv.Mat{testdata.Blank(64, 48)}
	defer testdata.CloseAll(frames)
	cam := capture.NewMockCamera(frames, true)
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	det := detector.NewMockDetector()
	det.Queue(
		&detector.Observation{Area: 100},
		nil,
		&detector.Observation{Area: 300},
		&detector.Observation{Area: 200},
	)

	area, err := measureArea(cam, det, 4)
	if err != nil {
		t.Fatalf("measureArea() error = %v", err)
	}
	if area != 200 {
		t.Errorf("area = %v, want 200", area)
	}

	if _, err := measureArea(cam, det, 3); !errors.Is(err, ErrNoMarker) {
		t.Errorf("measureArea() without detections error = %v, want ErrNoMarker", err)
	}
}
