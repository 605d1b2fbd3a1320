package yolo

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/detection"
)

// tensor builds a [attrs x candidates] column-major output.
func tensor(attrs int, cands [][]float32) []float32 {
	n := len(cands)
	data := make([]float32, attrs*n)
	for i, c := range cands {
		for a, v := range c {
			data[a*n+i] = v
		}
	}
	return data
}

func TestDecode(t *testing.T) {
	attrs := 4 + len(detection.COCOClasses)

	car := make([]float32, attrs)
	copy(car, []float32{320, 320, 64, 32})
	car[4+2] = 0.9

	weak := make([]float32, attrs)
	copy(weak, []float32{100, 100, 10, 10})
	weak[4+0] = 0.2

	data := tensor(attrs, [][]float32{car, weak})
	got := Decode(data, attrs, 2, 0.5, 0.5, 0.5)

	if len(got) != 1 {
		t.Fatalf("got %d detections, want 1", len(got))
	}
	d := got[0]
	if d.Label != "car" {
		t.Errorf("label = %q", d.Label)
	}
	if want := image.Rect(144, 152, 176, 168); d.Box != want {
		t.Errorf("box = %v, want %v", d.Box, want)
	}
	if d.Confidence < 0.89 || d.Confidence > 0.91 {
		t.Errorf("confidence = %v", d.Confidence)
	}
}

func TestDecode_BadShape(t *testing.T) {
	if Decode([]float32{1, 2}, 84, 10, 1, 1, 0.5) != nil {
		t.Error("short tensor should decode to nil")
	}
}

func TestNew_MissingModel(t *testing.T) {
	cfg := detection.DefaultConfig()
	cfg.ModelPath = "/nonexistent/yolov8n.onnx"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestDetect_Model(t *testing.T) {
	path := findModelPath()
	if path == "" {
		t.Skip("YOLO model not found, skipping test")
	}

	cfg := detection.DefaultConfig()
	cfg.ModelPath = path
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	frame := &camera.Frame{Img: camera.ColorBars(640, 480)}
	if _, err := d.Detect(frame); err != nil {
		t.Fatalf("Detect: %v", err)
	}

	d.Close()
	if _, err := d.Detect(frame); err != ErrClosed {
		t.Errorf("Detect after Close = %v", err)
	}
}

func findModelPath() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
			p := filepath.Join(dir, "models", "yolov8n.onnx")
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
