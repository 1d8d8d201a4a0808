package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frames are downscaled to MotionWidth before differencing. A pixel counts
// as changed when its blurred gray level moves by more than DiffThreshold.
const (
	MotionWidth   = 160
	MotionBlur    = 7
	DiffThreshold = 25
)

// MotionDetector reports whether consecutive frames differ by more than a
// percentage of their pixels. It gates detection when nothing in front of
// the board moves.
type MotionDetector struct {
	mu          sync.Mutex
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
}

// NewMotionDetector creates a detector firing when more than threshold
// percent of the pixels change.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{threshold: threshold, prevGray: gocv.NewMat()}
}

// Detect returns whether frame moved relative to the previous one and the
// changed percentage. The first frame after construction or Reset only
// becomes the reference.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	cur := reduce(frame)
	defer cur.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		cur.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.AbsDiff(cur, m.prevGray, &mask)
	gocv.Threshold(mask, &mask, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := 100 * float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols())
	cur.CopyTo(&m.prevGray)
	return changed > m.threshold, changed
}

// reduce returns a small blurred grayscale copy of frame.
func reduce(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	small := gocv.NewMat()
	defer small.Close()
	if w := gray.Cols(); w > MotionWidth {
		h := max(gray.Rows()*MotionWidth/w, 1)
		gocv.Resize(gray, &small, image.Pt(MotionWidth, h), 0, 0, gocv.InterpolationArea)
	} else {
		gray.CopyTo(&small)
	}

	out := gocv.NewMat()
	gocv.GaussianBlur(small, &out, image.Pt(MotionBlur, MotionBlur), 0, 0, gocv.BorderDefault)
	return out
}

// Reset drops the reference frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the reference frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold changes the changed-pixel percentage. Non-positive values
// are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	m.threshold = threshold
	m.mu.Unlock()
}

// RateController switches the capture rate between an idle and an active
// frame rate. Motion switches to the active rate immediately; the idle rate
// returns after IdleTimeout without motion.
type RateController struct {
	activeFPS   int
	idleFPS     int
	idleTimeout time.Duration
	active      bool
	lastMotion  time.Time
}

// NewRateController starts in idle mode.
func NewRateController(activeFPS, idleFPS int, idleTimeout time.Duration) *RateController {
	return &RateController{
		activeFPS:   activeFPS,
		idleFPS:     idleFPS,
		idleTimeout: idleTimeout,
	}
}

// Observe records a motion result and returns the rate to capture at and
// whether it changed.
func (r *RateController) Observe(now time.Time, motion bool) (int, bool) {
	if motion {
		r.lastMotion = now
		if !r.active {
			r.active = true
			return r.activeFPS, true
		}
		return r.activeFPS, false
	}
	if r.active && now.Sub(r.lastMotion) > r.idleTimeout {
		r.active = false
		return r.idleFPS, true
	}
	return r.FPS(), false
}

// FPS returns the current rate.
func (r *RateController) FPS() int {
	if r.active {
		return r.activeFPS
	}
	return r.idleFPS
}

// Active reports whether the controller is in active mode.
func (r *RateController) Active() bool {
	return r.active
}
