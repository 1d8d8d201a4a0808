package capture

import (
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/testdata"
)

func TestMotionDetector_Detect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	disc := func(x int) *gocv.Mat {
		return testdata.Frame(640, 480, testdata.Disc{Center: image.Pt(x, 240), Radius: 40, Color: testdata.Green})
	}
	solid := func(v float64) *gocv.Mat {
		m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		m.SetTo(gocv.NewScalar(v, v, v, 0))
		return &m
	}

	tests := []struct {
		name      string
		threshold float64
		prev      *gocv.Mat
		next      *gocv.Mat
		want      bool
		minPct    float64
	}{
		{name: "identical frames", threshold: 1, prev: solid(0), next: solid(0)},
		{name: "black to white", threshold: 1, prev: solid(0), next: solid(255), want: true, minPct: 50},
		{name: "still marker", threshold: 0.5, prev: disc(120), next: disc(120)},
		{name: "marker moved", threshold: 0.5, prev: disc(120), next: disc(480), want: true, minPct: 1},
		{name: "change below threshold", threshold: 99, prev: disc(120), next: disc(480)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.prev.Close()
			defer tt.next.Close()
			md := NewMotionDetector(tt.threshold)
			defer md.Close()

			if moved, pct := md.Detect(tt.prev); moved || pct != 0 {
				t.Errorf("first frame = (%v, %f), want baseline only", moved, pct)
			}
			moved, pct := md.Detect(tt.next)
			if moved != tt.want {
				t.Errorf("Detect() moved = %v, want %v (changed %.2f%%)", moved, tt.want, pct)
			}
			if pct < tt.minPct {
				t.Errorf("changed = %.2f%%, want at least %.2f%%", pct, tt.minPct)
			}
		})
	}
}

func TestMotionDetector_NilFrame(t *testing.T) {
	md := NewMotionDetector(1)
	defer md.Close()

	if moved, pct := md.Detect(nil); moved || pct != 0 {
		t.Errorf("Detect(nil) = (%v, %f)", moved, pct)
	}
	if md.initialized {
		t.Error("nil frame must not become the reference")
	}
}

func TestMotionDetector_ResetAndClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for _, name := range []string{"reset", "close"} {
		t.Run(name, func(t *testing.T) {
			md := NewMotionDetector(1)
			defer md.Close()

			md.Detect(&frame)
			if !md.initialized {
				t.Fatal("expected a reference after the first frame")
			}
			if name == "reset" {
				md.Reset()
			} else {
				md.Close()
				md.Close()
			}
			if md.initialized || !md.prevGray.Empty() {
				t.Errorf("%s should drop the reference", name)
			}
			if moved, _ := md.Detect(&frame); moved {
				t.Error("the next frame should only set the reference")
			}
		})
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1)
	defer md.Close()

	for _, tt := range []struct{ set, want float64 }{{5, 5}, {0.5, 0.5}, {0, 0.5}, {-1, 0.5}} {
		md.SetThreshold(tt.set)
		if md.threshold != tt.want {
			t.Errorf("SetThreshold(%v): threshold = %v, want %v", tt.set, md.threshold, tt.want)
		}
	}
}

func TestRateController(t *testing.T) {
	start := time.Unix(1000, 0)
	steps := []struct {
		name        string
		at          time.Duration
		motion      bool
		wantFPS     int
		wantChanged bool
	}{
		{name: "idle without motion", at: 0, motion: false, wantFPS: 5},
		{name: "motion activates", at: 100 * time.Millisecond, motion: true, wantFPS: 15, wantChanged: true},
		{name: "still active", at: 200 * time.Millisecond, motion: true, wantFPS: 15},
		{name: "quiet within timeout", at: 2 * time.Second, motion: false, wantFPS: 15},
		{name: "timeout returns to idle", at: 2300 * time.Millisecond, motion: false, wantFPS: 5, wantChanged: true},
		{name: "idle stays idle", at: 3 * time.Second, motion: false, wantFPS: 5},
	}

	rc := NewRateController(15, 5, 2*time.Second)
	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			fps, changed := rc.Observe(start.Add(st.at), st.motion)
			if fps != st.wantFPS || changed != st.wantChanged {
				t.Errorf("Observe() = (%d, %v), want (%d, %v)", fps, changed, st.wantFPS, st.wantChanged)
			}
			if rc.FPS() != fps {
				t.Errorf("FPS() = %d, want %d", rc.FPS(), fps)
			}
		})
	}
}
