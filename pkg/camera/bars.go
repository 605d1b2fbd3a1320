package camera

import (
	"image"
	"image/color"
	"sync"
)

var barColors = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 0, G: 0, B: 0, A: 255},
}

// ColorBars renders the standard eight vertical test bars.
func ColorBars(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barWidth := max(width/len(barColors), 1)
	for y := range height {
		for x := range width {
			i := min(x/barWidth, len(barColors)-1)
			img.SetRGBA(x, y, barColors[i])
		}
	}
	return img
}

// Static is a Source that returns copies of a fixed image.
// It stands in for a webcam when the camera is disabled, and in tests.
type Static struct {
	mu     sync.Mutex
	img    *image.RGBA
	err    error
	reads  int
	closed bool
}

// NewStatic creates a source that serves img.
func NewStatic(img *image.RGBA) *Static {
	return &Static{img: img}
}

// SetImage replaces the served image. A nil image makes Read return (nil, nil).
func (s *Static) SetImage(img *image.RGBA) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

// SetError makes subsequent reads fail with err. Pass nil to clear.
func (s *Static) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Read implements Source.
func (s *Static) Read() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	if s.img == nil {
		return nil, nil
	}
	return CloneRGBA(s.img), nil
}

// Close implements Source.
func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Reads returns the number of Read calls.
func (s *Static) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closed reports whether Close was called.
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
