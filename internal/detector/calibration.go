package detector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNotEnoughSamples is returned when a calibration fit has fewer than
// three points.
var ErrNotEnoughSamples = errors.New("calibration needs at least 3 points")

// Calibration ranges: the expected usage distances and the clamp applied to
// the predicted area range.
const (
	CalibrationNearCM  = 25
	CalibrationFarCM   = 120
	CalibrationMinArea = 30
	CalibrationMaxArea = 1000
)

// CalibrationPoint is a measured marker area at a known distance.
type CalibrationPoint struct {
	DistanceCM float64 `json:"distance_cm"`
	Area       float64 `json:"area"`
}

// AreaFit models marker area against distance as area = A/d² + B.
type AreaFit struct {
	A       float64 `json:"a"`
	B       float64 `json:"b"`
	MinArea float64 `json:"min_area"`
	MaxArea float64 `json:"max_area"`
	Points  int     `json:"points"`
}

// FitAreaModel fits the inverse-square model by least squares and derives
// the accepted area range for distances between CalibrationNearCM and
// CalibrationFarCM.
func FitAreaModel(points []CalibrationPoint) (AreaFit, error) {
	if len(points) < 3 {
		return AreaFit{}, fmt.Errorf("%w: got %d", ErrNotEnoughSamples, len(points))
	}

	var sx, sy, sxx, sxy float64
	for _, p := range points {
		if p.DistanceCM <= 0 {
			return AreaFit{}, fmt.Errorf("distance must be positive, got %v", p.DistanceCM)
		}
		x := 1 / (p.DistanceCM * p.DistanceCM)
		sx += x
		sy += p.Area
		sxx += x * x
		sxy += x * p.Area
	}
	n := float64(len(points))
	den := n*sxx - sx*sx
	if den == 0 {
		return AreaFit{}, errors.New("calibration points must cover more than one distance")
	}

	fit := AreaFit{Points: len(points)}
	fit.A = (n*sxy - sx*sy) / den
	fit.B = (sy - fit.A*sx) / n
	fit.MinArea = math.Max(CalibrationMinArea, fit.Predict(CalibrationFarCM))
	fit.MaxArea = math.Min(CalibrationMaxArea, fit.Predict(CalibrationNearCM))
	if fit.MinArea >= fit.MaxArea {
		return AreaFit{}, fmt.Errorf("calibration produced an empty area range [%.0f, %.0f]", fit.MinArea, fit.MaxArea)
	}
	return fit, nil
}

// Predict returns the expected area at distance d.
func (f AreaFit) Predict(d float64) float64 {
	return f.A/(d*d) + f.B
}

// Distance estimates the marker distance for an observed area, or false
// when the area is not above the model's asymptote.
func (f AreaFit) Distance(area float64) (float64, bool) {
	if area <= f.B || f.A <= 0 {
		return 0, false
	}
	return math.Sqrt(f.A / (area - f.B)), true
}

// MedianArea returns the median of the measured areas, ignoring zeros.
func MedianArea(areas []float64) (float64, bool) {
	vals := make([]float64, 0, len(areas))
	for _, a := range areas {
		if a > 0 {
			vals = append(vals, a)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}
