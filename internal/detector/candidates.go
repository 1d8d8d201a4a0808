package detector

import (
	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/scoring"
)

// candidate is a region that passed the plausibility checks.
type candidate struct {
	index       int
	center      board.Point // frame pixels
	area        float64
	circularity float64
	convexity   float64
	scores      scoring.Scores
}

// quality is the mean of the frame-local sub-scores.
func (c candidate) quality() float64 {
	return (c.scores.Geometric + c.scores.Color + c.scores.Uniformity) / 3
}

// rank orders candidates: mostly quality, then size, with bonuses for
// continuity with the anchor and for sitting in the upper 70% of the frame.
func (c candidate) rank(anchor *board.Point, frameHeight, maxArea float64) float64 {
	r := 0.7 * c.quality()
	if maxArea > 0 {
		a := c.area / maxArea
		if a > 1 {
			a = 1
		}
		r += 0.3 * a
	}
	if anchor != nil {
		switch d := c.center.Dist(*anchor); {
		case d <= 100:
			r += 0.2
		case d <= 200:
			r += 0.1
		}
	}
	if c.center.Y < 0.7*frameHeight {
		r += 0.1
	}
	return r
}

// selectCandidate picks the highest ranked candidate. Equal ranks resolve to
// the lower contour index, so the choice is deterministic.
func selectCandidate(cands []candidate, anchor *board.Point, frameHeight, maxArea float64) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	bestRank := best.rank(anchor, frameHeight, maxArea)
	for _, c := range cands[1:] {
		r := c.rank(anchor, frameHeight, maxArea)
		if r > bestRank || (r == bestRank && c.index < best.index) {
			best, bestRank = c, r
		}
	}
	return best, true
}

// plausible applies the size and shape gates.
func (m MarkerConfig) plausible(area, aspect, circularity, convexity float64) bool {
	if area < m.MinArea || area > m.MaxArea {
		return false
	}
	if aspect < m.MinAspect || aspect > m.MaxAspect {
		return false
	}
	return circularity >= m.MinCircularity && convexity >= m.MinConvexity
}
