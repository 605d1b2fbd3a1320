// Package detection holds labelled bounding boxes and the pure geometry
// around them: IoU, non-maximum suppression, filtering and overlay drawing.
// The model itself lives in the yolo subpackage.
package detection

import (
	"encoding/json"
	"image"
	"sync"

	"github.com/Preet3627/Saras-AI/pkg/camera"
)

// Detection is one labelled box in frame pixel coordinates.
type Detection struct {
	Label      string
	Box        image.Rectangle
	Confidence float64
}

// Center returns the box centre in pixels.
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.Min.X) + float64(d.Box.Dx())/2,
		float64(d.Box.Min.Y) + float64(d.Box.Dy())/2
}

// Area returns the box area in square pixels.
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

type wireDetection struct {
	Label      string  `json:"label"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	W          int     `json:"w"`
	H          int     `json:"h"`
	Confidence float64 `json:"confidence"`
}

// MarshalJSON encodes the box as x, y, w, h.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDetection{
		Label:      d.Label,
		X:          d.Box.Min.X,
		Y:          d.Box.Min.Y,
		W:          d.Box.Dx(),
		H:          d.Box.Dy(),
		Confidence: d.Confidence,
	})
}

// UnmarshalJSON decodes the x, y, w, h form.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var w wireDetection
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.Label = w.Label
	d.Box = image.Rect(w.X, w.Y, w.X+w.W, w.Y+w.H)
	d.Confidence = w.Confidence
	return nil
}

// Detector finds objects in a frame.
type Detector interface {
	Detect(frame *camera.Frame) ([]Detection, error)
}

// Config holds detector thresholds.
type Config struct {
	ModelPath        string  `json:"model_path"`
	ConfidenceThresh float64 `json:"confidence_thresh"`
	NMSThresh        float64 `json:"nms_thresh"`
	InputWidth       int     `json:"input_width"`
	InputHeight      int     `json:"input_height"`
}

// DefaultConfig returns production defaults for YOLOv8n.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// Mock returns scripted detections.
type Mock struct {
	mu    sync.Mutex
	dets  []Detection
	err   error
	calls int
}

// NewMock creates a detector that always returns dets.
func NewMock(dets ...Detection) *Mock {
	return &Mock{dets: dets}
}

// Set replaces the scripted result.
func (m *Mock) Set(dets []Detection, err error) {
	m.mu.Lock()
	m.dets, m.err = dets, err
	m.mu.Unlock()
}

// Detect implements Detector.
func (m *Mock) Detect(*camera.Frame) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]Detection(nil), m.dets...), nil
}

// Calls returns how many times Detect ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
