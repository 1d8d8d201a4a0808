// Package testdata synthesises camera frames for tests that need real
// pixels: colored discs standing in for a marker over a flat background.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Marker colors.
var (
	Red   = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	Green = color.RGBA{R: 20, G: 200, B: 40, A: 255}
	Gray  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// Disc is a filled circle drawn onto a frame.
type Disc struct {
	Center image.Point
	Radius int
	Color  color.RGBA
}

// Blank returns a w×h BGR frame filled with the background gray.
func Blank(w, h int) *gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(Gray.B), float64(Gray.G), float64(Gray.R), 0), h, w, gocv.MatTypeCV8UC3)
	return &m
}

// Frame returns a w×h frame with the given discs drawn in order.
func Frame(w, h int, discs ...Disc) *gocv.Mat {
	m := Blank(w, h)
	for _, d := range discs {
		gocv.Circle(m, d.Center, d.Radius, d.Color, -1)
	}
	return m
}

// MarkerAt returns a 640×480 frame with a red marker of radius r at (x, y).
func MarkerAt(x, y, r int) *gocv.Mat {
	return Frame(640, 480, Disc{Center: image.Pt(x, y), Radius: r, Color: Red})
}

// Path returns one marker frame per point.
func Path(r int, pts ...image.Point) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, len(pts))
	for _, p := range pts {
		frames = append(frames, MarkerAt(p.X, p.Y, r))
	}
	return frames
}

// CloseAll releases every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// EncodeJPEG encodes a frame the way the landmark service receives it.
func EncodeJPEG(m *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *m)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// DecodeFrame decodes JPEG or PNG bytes into a BGR frame.
func DecodeFrame(data []byte) (*gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decode frame: empty image")
	}
	return &mat, nil
}
