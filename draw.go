package facecap

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// Annotation holds the style used to draw over the live preview.
type Annotation struct {
	TextColor  color.Color
	RectColor  color.Color
	LineWidth  float64
	TextOrigin image.Point
}

// DefaultAnnotation returns the overlay style of the preview window:
// green status text and blue face rectangles.
func DefaultAnnotation() Annotation {
	return Annotation{
		TextColor:  color.NRGBA{R: 0, G: 255, B: 0, A: 255},
		RectColor:  color.NRGBA{R: 0, G: 0, B: 255, A: 255},
		LineWidth:  2,
		TextOrigin: image.Pt(10, 30),
	}
}

// Annotate draws the status text and the detection rectangles over a copy of the frame.
// The rectangles are relative to the top-left corner of the frame. The source frame is left untouched.
func (a Annotation) Annotate(frame image.Image, faces []image.Rectangle, text string) image.Image {
	dc := gg.NewContextForImage(frame)

	dc.SetLineWidth(a.LineWidth)
	dc.SetColor(a.RectColor)
	for _, r := range faces {
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()
	}

	if len(text) > 0 {
		dc.SetColor(a.TextColor)
		dc.DrawString(text, float64(a.TextOrigin.X), float64(a.TextOrigin.Y))
	}
	return dc.Image()
}
