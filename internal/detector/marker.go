package detector

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/handstate"
	"github.com/ayusman/gestureboard/internal/scoring"
)

// Marker presets.
const (
	PresetRed  = "red"
	PresetSkin = "skin"
)

// HSVBand is an inclusive OpenCV HSV range (H 0-179, S and V 0-255).
type HSVBand struct {
	Low  [3]float64 `yaml:"low" json:"low"`
	High [3]float64 `yaml:"high" json:"high"`
}

func (b HSVBand) contains(h, s, v uint8) bool {
	return float64(h) >= b.Low[0] && float64(h) <= b.High[0] &&
		float64(s) >= b.Low[1] && float64(s) <= b.High[1] &&
		float64(v) >= b.Low[2] && float64(v) <= b.High[2]
}

// MarkerConfig configures the color marker detector. Zero fields take the
// preset's value.
type MarkerConfig struct {
	Preset         string    `yaml:"preset" env:"PRESET"`
	Bands          []HSVBand `yaml:"bands"`
	MinArea        float64   `yaml:"min_area" env:"MIN_AREA"`
	MaxArea        float64   `yaml:"max_area" env:"MAX_AREA"`
	OptimalArea    float64   `yaml:"optimal_area" env:"OPTIMAL_AREA"`
	MinCircularity float64   `yaml:"min_circularity" env:"MIN_CIRCULARITY"`
	MinConvexity   float64   `yaml:"min_convexity" env:"MIN_CONVEXITY"`
	MinAspect      float64   `yaml:"min_aspect" env:"MIN_ASPECT"`
	MaxAspect      float64   `yaml:"max_aspect" env:"MAX_ASPECT"`
	KernelSize     int       `yaml:"kernel_size" env:"KERNEL_SIZE"`
	// CountFingers counts convexity defects as fingers. Only meaningful for
	// hand-shaped regions.
	CountFingers bool `yaml:"count_fingers" env:"COUNT_FINGERS"`
}

var presets = map[string]MarkerConfig{
	PresetRed: {
		Preset: PresetRed,
		Bands: []HSVBand{
			{Low: [3]float64{0, 100, 100}, High: [3]float64{10, 255, 255}},
			{Low: [3]float64{160, 100, 100}, High: [3]float64{179, 255, 255}},
		},
		MinArea:        100,
		MaxArea:        12000,
		OptimalArea:    1200,
		MinCircularity: 0.4,
		MinConvexity:   0.7,
		MinAspect:      0.3,
		MaxAspect:      3,
		KernelSize:     5,
	},
	PresetSkin: {
		Preset: PresetSkin,
		Bands: []HSVBand{
			{Low: [3]float64{0, 30, 60}, High: [3]float64{25, 255, 255}},
		},
		MinArea:        1500,
		MaxArea:        120000,
		OptimalArea:    20000,
		MinCircularity: 0.05,
		MinConvexity:   0.5,
		MinAspect:      0.3,
		MaxAspect:      3,
		KernelSize:     5,
		CountFingers:   true,
	},
}

// Resolve returns the effective configuration: the named preset with every
// non-zero field of m applied on top.
func (m MarkerConfig) Resolve() (MarkerConfig, error) {
	name := m.Preset
	if name == "" {
		name = PresetRed
	}
	base, ok := presets[name]
	if !ok {
		return MarkerConfig{}, fmt.Errorf("unknown marker preset %q", name)
	}
	base.Bands = append([]HSVBand(nil), base.Bands...)

	if len(m.Bands) > 0 {
		base.Bands = append([]HSVBand(nil), m.Bands...)
	}
	override(&base.MinArea, m.MinArea)
	override(&base.MaxArea, m.MaxArea)
	override(&base.OptimalArea, m.OptimalArea)
	override(&base.MinCircularity, m.MinCircularity)
	override(&base.MinConvexity, m.MinConvexity)
	override(&base.MinAspect, m.MinAspect)
	override(&base.MaxAspect, m.MaxAspect)
	if m.KernelSize > 0 {
		base.KernelSize = m.KernelSize
	}
	if m.CountFingers {
		base.CountFingers = true
	}
	if base.MinArea >= base.MaxArea {
		return MarkerConfig{}, fmt.Errorf("marker min_area %.0f must be below max_area %.0f", base.MinArea, base.MaxArea)
	}
	return base, nil
}

func override(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// MarkerDetector finds a colored marker (or a skin-colored hand) by HSV
// thresholding, morphology and contour analysis.
type MarkerDetector struct {
	cfg    MarkerConfig
	kernel gocv.Mat

	mu      sync.Mutex
	anchor  *board.Point
	minArea float64
	maxArea float64
}

// NewMarkerDetector creates a marker detector from cfg.
func NewMarkerDetector(cfg MarkerConfig) (*MarkerDetector, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	k := resolved.KernelSize
	return &MarkerDetector{
		cfg:     resolved,
		kernel:  gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(k, k)),
		minArea: resolved.MinArea,
		maxArea: resolved.MaxArea,
	}, nil
}

// Name returns the strategy name.
func (d *MarkerDetector) Name() string {
	return StrategyMarker
}

// Config returns the resolved configuration.
func (d *MarkerDetector) Config() MarkerConfig {
	return d.cfg
}

// SetAnchor sets the preferred position for the tie-break.
func (d *MarkerDetector) SetAnchor(p *board.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p == nil {
		d.anchor = nil
		return
	}
	a := *p
	d.anchor = &a
}

// SetAreaRange replaces the accepted contour area range, usually with the
// range predicted by a size calibration.
func (d *MarkerDetector) SetAreaRange(min, max float64) error {
	if min <= 0 || min >= max {
		return fmt.Errorf("invalid area range [%.0f, %.0f]", min, max)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.minArea, d.maxArea = min, max
	return nil
}

// AreaRange returns the accepted contour area range.
func (d *MarkerDetector) AreaRange() (float64, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minArea, d.maxArea
}

// Close releases the morphology kernel.
func (d *MarkerDetector) Close() error {
	return d.kernel.Close()
}

// Detect thresholds the frame, cleans the mask, scores every plausible
// contour and returns the best one.
func (d *MarkerDetector) Detect(frame *gocv.Mat) (*Observation, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	w, h := float64(frame.Cols()), float64(frame.Rows())

	d.mu.Lock()
	gate := d.cfg
	gate.MinArea, gate.MaxArea = d.minArea, d.maxArea
	var anchor *board.Point
	if d.anchor != nil {
		anchor = &board.Point{X: d.anchor.X * w, Y: d.anchor.Y * h}
	}
	d.mu.Unlock()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	if err := d.threshold(hsv, &mask); err != nil {
		return nil, err
	}
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, d.kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, d.kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var (
		cands   []candidate
		fingers = map[int]int{}
	)
	for i := 0; i < contours.Size(); i++ {
		c, ok := d.measure(*frame, hsv, contours, i, gate)
		if !ok {
			continue
		}
		cands = append(cands, c)
		if gate.CountFingers {
			fingers[i] = countDefects(contours.At(i))
		}
	}

	best, ok := selectCandidate(cands, anchor, h, gate.MaxArea)
	if !ok {
		return nil, nil
	}

	open := handstate.Openness{Fingers: -1, HullRatio: best.convexity}
	if gate.CountFingers {
		open.Fingers = fingers[best.index]
	}

	return &Observation{
		Position:   board.Point{X: best.center.X / w, Y: best.center.Y / h},
		Confidence: best.quality(),
		Scores:     best.scores,
		Openness:   open,
		Area:       best.area,
		Timestamp:  time.Now(),
	}, nil
}

func (d *MarkerDetector) threshold(hsv gocv.Mat, dst *gocv.Mat) error {
	if len(d.cfg.Bands) == 0 {
		return fmt.Errorf("marker detector has no color bands")
	}
	for i, b := range d.cfg.Bands {
		lo := gocv.NewScalar(b.Low[0], b.Low[1], b.Low[2], 0)
		hi := gocv.NewScalar(b.High[0], b.High[1], b.High[2], 0)
		if i == 0 {
			gocv.InRangeWithScalar(hsv, lo, hi, dst)
			continue
		}
		band := gocv.NewMat()
		gocv.InRangeWithScalar(hsv, lo, hi, &band)
		gocv.BitwiseOr(*dst, band, dst)
		band.Close()
	}
	return nil
}

// measure computes shape, color and uniformity for contour i and reports
// whether it passes the plausibility gates.
func (d *MarkerDetector) measure(frame, hsv gocv.Mat, contours gocv.PointsVector, i int, gate MarkerConfig) (candidate, bool) {
	pv := contours.At(i)
	area := gocv.ContourArea(pv)
	if area < gate.MinArea || area > gate.MaxArea {
		return candidate{}, false
	}

	rect := gocv.BoundingRect(pv)
	if rect.Dx() == 0 || rect.Dy() == 0 {
		return candidate{}, false
	}
	aspect := float64(rect.Dx()) / float64(rect.Dy())

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, true)
	hullPV := gocv.NewPointVectorFromMat(hull)
	defer hullPV.Close()

	circ := scoring.Circularity(area, gocv.ArcLength(pv, true))
	conv := scoring.Convexity(area, gocv.ContourArea(hullPV))
	if !gate.plausible(area, aspect, circ, conv) {
		return candidate{}, false
	}

	region := gocv.Zeros(frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	defer region.Close()
	gocv.DrawContours(&region, contours, i, color.RGBA{R: 255, G: 255, B: 255}, -1)

	st := d.sample(frame, hsv, region, rect)

	var center board.Point
	pts := pv.ToPoints()
	for _, p := range pts {
		center.X += float64(p.X)
		center.Y += float64(p.Y)
	}
	center.X /= float64(len(pts))
	center.Y /= float64(len(pts))

	return candidate{
		index:       i,
		center:      center,
		area:        area,
		circularity: circ,
		convexity:   conv,
		scores: scoring.Scores{
			Geometric:  scoring.Geometric(circ, conv, area, gate.OptimalArea),
			Color:      scoring.Color(st.purity, st.meanSat, st.meanVal),
			Uniformity: scoring.Uniformity(st.avgStdDev),
			Temporal:   1,
		},
	}, true
}

type regionStats struct {
	purity    float64
	meanSat   float64
	meanVal   float64
	avgStdDev float64
}

// maxSamples bounds the per-candidate pixel reads.
const maxSamples = 1500

// sample walks the region's bounding box on a stride and gathers hue purity,
// mean saturation and brightness, and the mean BGR standard deviation.
func (d *MarkerDetector) sample(frame, hsv, region gocv.Mat, rect image.Rectangle) regionStats {
	step := int(math.Sqrt(float64(rect.Dx()*rect.Dy()) / maxSamples))
	if step < 1 {
		step = 1
	}

	var (
		n, inBand  int
		sumS, sumV float64
		sum, sumSq [3]float64
	)
	for y := rect.Min.Y; y < rect.Max.Y; y += step {
		for x := rect.Min.X; x < rect.Max.X; x += step {
			if region.GetUCharAt(y, x) == 0 {
				continue
			}
			hv := hsv.GetVecbAt(y, x)
			bgr := frame.GetVecbAt(y, x)
			n++
			for _, b := range d.cfg.Bands {
				if b.contains(hv[0], hv[1], hv[2]) {
					inBand++
					break
				}
			}
			sumS += float64(hv[1])
			sumV += float64(hv[2])
			for c := 0; c < 3; c++ {
				v := float64(bgr[c])
				sum[c] += v
				sumSq[c] += v * v
			}
		}
	}
	if n == 0 {
		return regionStats{}
	}

	fn := float64(n)
	var std float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / fn
		variance := sumSq[c]/fn - mean*mean
		if variance > 0 {
			std += math.Sqrt(variance)
		}
	}
	return regionStats{
		purity:    float64(inBand) / fn,
		meanSat:   sumS / fn,
		meanVal:   sumV / fn,
		avgStdDev: std / 3,
	}
}

// minDefectDepth is the convexity defect depth, in OpenCV fixed point
// (1/256 px), below which a gap is not counted as a finger.
const minDefectDepth = 2000

// countDefects counts deep, acute convexity defects, capped at five.
func countDefects(pv gocv.PointVector) int {
	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, false)
	if hull.Rows() < 3 {
		return 0
	}

	defects := gocv.NewMat()
	defer defects.Close()
	if err := gocv.ConvexityDefects(pv, hull, &defects); err != nil {
		return 0
	}

	pts := pv.ToPoints()
	n := 0
	for i := 0; i < defects.Rows(); i++ {
		v := defects.GetVeciAt(i, 0)
		start, end, far := toPoint(pts[v[0]]), toPoint(pts[v[1]]), toPoint(pts[v[2]])
		if v[3] <= minDefectDepth {
			continue
		}
		a := start.Dist(end)
		b := far.Dist(start)
		c := far.Dist(end)
		if b == 0 || c == 0 {
			continue
		}
		if math.Acos(clampUnit((b*b+c*c-a*a)/(2*b*c))) <= math.Pi/2 {
			n++
		}
	}
	if n > 5 {
		n = 5
	}
	return n
}

func toPoint(p image.Point) board.Point {
	return board.Point{X: float64(p.X), Y: float64(p.Y)}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
