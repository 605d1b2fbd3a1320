// Package webcam reads frames from a V4L2 camera through OpenCV.
package webcam

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Preet3627/Saras-AI/pkg/camera"
)

// ErrEmptyFrame is returned when the device delivers no image.
var ErrEmptyFrame = errors.New("webcam: empty frame")

// Webcam is a camera.Source backed by gocv.VideoCapture.
type Webcam struct {
	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
	cfg camera.Config
}

// Open opens the device in cfg and applies its resolution and frame rate.
// It fails if the device cannot be opened.
func Open(cfg camera.Config) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Webcam{cap: vc, mat: gocv.NewMat(), cfg: cfg}, nil
}

// Read blocks until the next frame and returns it as RGBA.
func (w *Webcam) Read() (*image.RGBA, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return nil, errors.New("webcam: closed")
	}
	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return camera.ToRGBA(img), nil
}

// Config returns the settings the device was opened with.
func (w *Webcam) Config() camera.Config {
	return w.cfg
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.mat.Close()
	w.cap = nil
	return err
}
