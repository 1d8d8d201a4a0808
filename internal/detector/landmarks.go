package detector

import (
	"math"

	"github.com/ayusman/gestureboard/internal/board"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark in normalized image coordinates; z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks reported by the landmark
// service.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Centroid returns the mean of all landmarks in normalized coordinates.
func (h *HandLandmarks) Centroid() board.Point {
	var c board.Point
	for _, p := range h.Points {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= NumLandmarks
	c.Y /= NumLandmarks
	return c
}

// Pixels projects the landmarks into a w×h image.
func (h *HandLandmarks) Pixels(w, hgt float64) [NumLandmarks]board.Point {
	var out [NumLandmarks]board.Point
	for i, p := range h.Points {
		out[i] = board.Point{X: p.X * w, Y: p.Y * hgt}
	}
	return out
}

// BoundsArea returns the pixel area of the landmarks' bounding box in a
// w×h image.
func (h *HandLandmarks) BoundsArea(w, hgt float64) float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range h.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return (maxX - minX) * w * (maxY - minY) * hgt
}
