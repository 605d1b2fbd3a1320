package camera

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"time"
)

// Frame is one captured image. Each reader gets its own Frame, so the
// pixels may be modified freely.
type Frame struct {
	Img *image.RGBA
	Seq uint64
	At  time.Time
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Img.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Img.Bounds().Dy() }

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	return &Frame{Img: CloneRGBA(f.Img), Seq: f.Seq, At: f.At}
}

// JPEG encodes the frame at the given quality (1-100).
func (f *Frame) JPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CloneRGBA copies an RGBA image into a new buffer.
func CloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	if dst.Stride != src.Stride {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	}
	return dst
}

// ToRGBA converts any image to RGBA, copying it when it already is one.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return CloneRGBA(rgba)
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
