package scoring

import "math"

// Geometric scores a contour's shape: circularity and convexity against a
// preferred area. areaScore falls linearly to zero at twice or zero times
// the optimal area.
func Geometric(circularity, convexity, area, optimalArea float64) float64 {
	areaScore := 0.0
	if optimalArea > 0 {
		areaScore = 1 - math.Min(math.Abs(area-optimalArea)/optimalArea, 1)
	}
	return clamp01(0.4*clamp01(circularity) + 0.3*clamp01(convexity) + 0.3*areaScore)
}

// Circularity returns 4πA/P², 1 for a perfect disc.
func Circularity(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	return clamp01(4 * math.Pi * area / (perimeter * perimeter))
}

// Convexity returns the ratio of contour area to hull area.
func Convexity(area, hullArea float64) float64 {
	if hullArea <= 0 {
		return 0
	}
	return clamp01(area / hullArea)
}

// Color scores hue purity together with saturation and brightness. purity
// is the fraction of region pixels inside the configured hue band.
func Color(purity, meanSat, meanVal float64) float64 {
	return clamp01(clamp01(purity)*0.7 + math.Min(meanSat, meanVal)/255*0.3)
}

// Uniformity maps the average per-channel standard deviation of a region
// to a score, 1 for a flat region and 0 at a deviation of 64 or more.
func Uniformity(avgStdDev float64) float64 {
	return 1 - clamp01(avgStdDev/64)
}

// Temporal scores a candidate against recent accepted positions and areas.
// A candidate with no history scores 1.
func Temporal(jump, maxJump, areaVariation float64) float64 {
	if maxJump <= 0 {
		return 1
	}
	jumpScore := 1 - clamp01(jump/maxJump)
	sizeScore := 1 - clamp01(areaVariation)
	return clamp01(0.6*jumpScore + 0.4*sizeScore)
}
