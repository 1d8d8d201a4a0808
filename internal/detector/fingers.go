package detector

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/board"
)

// fingerJoints lists MCP, PIP, DIP and tip for the four long fingers.
var fingerJoints = [4][4]int{
	{IndexMCP, IndexPIP, IndexDIP, IndexTip},
	{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
	{RingMCP, RingPIP, RingDIP, RingTip},
	{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
}

// handOutline traces the palm and fingertips; its area against its convex
// hull measures how spread the hand is.
var handOutline = []int{0, 1, 2, 5, 9, 13, 17, 4, 8, 12, 16, 20, 17, 13, 9, 5, 1}

// FingerMargins are the distance ratios and curl limits deciding whether a
// finger is extended. Distances are measured from the middle finger MCP.
type FingerMargins struct {
	// A long finger's tip must be beyond TipOverPIP times the PIP distance
	// and TipOverMCP times the MCP distance.
	TipOverPIP float64 `yaml:"tip_over_pip" env:"TIP_OVER_PIP"`
	TipOverMCP float64 `yaml:"tip_over_mcp" env:"TIP_OVER_MCP"`

	// Distances must grow along the finger.
	PIPOverMCP float64 `yaml:"pip_over_mcp" env:"PIP_OVER_MCP"`
	TipStep    float64 `yaml:"tip_step" env:"TIP_STEP"`

	// CurlCos rejects a finger whose first two segments bend back at or
	// below this cosine.
	CurlCos float64 `yaml:"curl_cos" env:"CURL_COS"`

	ThumbOverMCP float64 `yaml:"thumb_over_mcp" env:"THUMB_OVER_MCP"`
	ThumbOverCMC float64 `yaml:"thumb_over_cmc" env:"THUMB_OVER_CMC"`
	ThumbCurlCos float64 `yaml:"thumb_curl_cos" env:"THUMB_CURL_COS"`
}

// DefaultFingerMargins returns margins tuned on MediaPipe hands at webcam
// distance.
func DefaultFingerMargins() FingerMargins {
	return FingerMargins{
		TipOverPIP:   1.2,
		TipOverMCP:   1.1,
		PIPOverMCP:   0.9,
		TipStep:      1.05,
		CurlCos:      -0.2,
		ThumbOverMCP: 1.1,
		ThumbOverCMC: 1.2,
		ThumbCurlCos: -0.1,
	}
}

// FingerStates reports which fingers are extended, thumb first. Distances
// are measured in pixels of a w×h image from the middle finger MCP.
func FingerStates(h *HandLandmarks, w, hgt float64, m FingerMargins) [5]bool {
	px := h.Pixels(w, hgt)
	palm := px[MiddleMCP]

	var out [5]bool
	out[0] = m.thumbExtended(px, palm)
	for i, j := range fingerJoints {
		out[i+1] = m.fingerExtended(px[j[0]], px[j[1]], px[j[2]], px[j[3]], palm)
	}
	return out
}

// CountFingers returns the number of extended fingers, 0 to 5.
func CountFingers(h *HandLandmarks, w, hgt float64, m FingerMargins) int {
	n := 0
	for _, up := range FingerStates(h, w, hgt, m) {
		if up {
			n++
		}
	}
	return n
}

func (m FingerMargins) fingerExtended(mcp, pip, dip, tip, palm board.Point) bool {
	tipD := tip.Dist(palm)
	pipD := pip.Dist(palm)
	mcpD := mcp.Dist(palm)

	if tipD <= math.Max(pipD*m.TipOverPIP, mcpD*m.TipOverMCP) {
		return false
	}
	if !(pipD > mcpD*m.PIPOverMCP && tipD > pipD*m.TipStep) {
		return false
	}
	if c, ok := cosAngle(sub(pip, mcp), sub(dip, pip)); ok && c <= m.CurlCos {
		return false
	}
	return true
}

func (m FingerMargins) thumbExtended(px [NumLandmarks]board.Point, palm board.Point) bool {
	tipD := px[ThumbTip].Dist(palm)
	mcpD := px[ThumbMCP].Dist(palm)
	cmcD := px[ThumbCMC].Dist(palm)

	if tipD <= math.Max(mcpD*m.ThumbOverMCP, cmcD*m.ThumbOverCMC) {
		return false
	}
	c, ok := cosAngle(sub(px[ThumbIP], px[ThumbMCP]), sub(px[ThumbTip], px[ThumbIP]))
	return !ok || c > m.ThumbCurlCos
}

// HullRatio returns the area of the hand outline divided by the area of the
// convex hull of all landmarks, clamped to [0.3, 1]. An open hand fills
// most of its hull.
func HullRatio(h *HandLandmarks, w, hgt float64) float64 {
	px := h.Pixels(w, hgt)
	toImage := func(p board.Point) image.Point {
		return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}

	all := make([]image.Point, len(px))
	for i, p := range px {
		all[i] = toImage(p)
	}
	outline := make([]image.Point, len(handOutline))
	for i, idx := range handOutline {
		outline[i] = toImage(px[idx])
	}

	allPV := gocv.NewPointVectorFromPoints(all)
	defer allPV.Close()
	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(allPV, &hull, false, true)
	hullPV := gocv.NewPointVectorFromMat(hull)
	defer hullPV.Close()

	hullArea := gocv.ContourArea(hullPV)
	if hullArea <= 0 {
		return 0.3
	}
	outlinePV := gocv.NewPointVectorFromPoints(outline)
	defer outlinePV.Close()

	r := gocv.ContourArea(outlinePV) / hullArea
	return math.Max(0.3, math.Min(1, r))
}

func sub(a, b board.Point) board.Point {
	return board.Point{X: a.X - b.X, Y: a.Y - b.Y}
}

// cosAngle returns the cosine of the angle between two vectors, and false
// when either has zero length.
func cosAngle(a, b board.Point) (float64, bool) {
	na := a.Dist(board.Point{})
	nb := b.Dist(board.Point{})
	if na == 0 || nb == 0 {
		return 0, false
	}
	return (a.X*b.X + a.Y*b.Y) / (na * nb), true
}
