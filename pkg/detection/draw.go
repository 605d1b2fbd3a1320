package detection

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Preet3627/Saras-AI/pkg/camera"
)

// Overlay colours.
var (
	BoxColor    = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	HazardColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	TextColor   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

const boxThickness = 2

// Draw returns a copy of frame with a rectangle and "label 0.87" caption
// for each detection. The input frame is left untouched.
func Draw(frame *camera.Frame, dets []Detection, hazards ...string) *camera.Frame {
	out := frame.Clone()
	for _, d := range dets {
		c := BoxColor
		if HasAny([]Detection{d}, hazards...) {
			c = HazardColor
		}
		drawRect(out.Img, d.Box, c)
		drawLabel(out.Img, d.Box.Min, Caption(d), c)
	}
	return out
}

// Caption is the overlay text for a detection.
func Caption(d Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.RGBA, at image.Point, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	// Caption sits above the box, or inside it when the box touches the top edge.
	top := at.Y - height
	if top < img.Bounds().Min.Y {
		top = at.Y
	}
	bgRect := image.Rect(at.X, top, at.X+width+4, top+height).Intersect(img.Bounds())
	draw.Draw(img, bgRect, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(TextColor),
		Face: face,
		Dot:  fixed.P(at.X+2, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
