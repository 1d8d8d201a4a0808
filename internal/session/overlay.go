package session

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/pipeline"
)

// Preview frame size and JPEG quality.
const (
	PreviewWidth   = 320
	PreviewHeight  = 240
	PreviewQuality = 60
)

var (
	colorOpen     = color.RGBA{R: 30, G: 144, B: 255}
	colorGrabbing = color.RGBA{R: 255, G: 140, B: 0}
	colorBoard    = color.RGBA{R: 160, G: 160, B: 160}
	colorHover    = color.RGBA{R: 0, G: 220, B: 0}
	colorSelected = color.RGBA{R: 255, G: 215, B: 0}
)

// renderPreview draws the board, hovered and selected cells and the hand
// cursor over a copy of frame and encodes it as a small JPEG.
func (s *Session) renderPreview(frame *gocv.Mat, res pipeline.Result) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	img := frame.Clone()
	defer img.Close()

	vw, vh := s.pipe.Viewport()
	sx := float64(img.Cols()) / vw
	sy := float64(img.Rows()) / vh
	toImage := func(r board.Rect) image.Rectangle {
		return image.Rect(int(r.X*sx), int(r.Y*sy), int((r.X+r.W)*sx), int((r.Y+r.H)*sy))
	}

	m := s.pipe.Mapper()
	gocv.Rectangle(&img, toImage(m.Bounds()), colorBoard, 1)
	if c := s.pipe.Hovered(); c != nil {
		gocv.Rectangle(&img, toImage(m.CellRect(*c)), colorHover, 2)
	}
	if c := s.pipe.Selected(); c != nil {
		gocv.Rectangle(&img, toImage(m.CellRect(*c)), colorSelected, 3)
	}

	if res.Detected {
		cursor := colorGrabbing
		label := GestureGrabbing
		if res.Open {
			cursor = colorOpen
			label = GestureOpen
		}
		center := image.Pt(int(res.Position.X*sx), int(res.Position.Y*sy))
		gocv.Circle(&img, center, 12, cursor, -1)
		gocv.PutText(&img, fmt.Sprintf("%s %.2f", label, res.Confidence),
			image.Pt(10, 24), gocv.FontHersheySimplex, 0.7, cursor, 2)
	}

	preview := gocv.NewMat()
	defer preview.Close()
	gocv.Resize(img, &preview, image.Pt(PreviewWidth, PreviewHeight), 0, 0, gocv.InterpolationLinear)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, preview, []int{gocv.IMWriteJpegQuality, PreviewQuality})
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
