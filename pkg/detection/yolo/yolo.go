// Package yolo runs a YOLOv8 ONNX model through the OpenCV DNN module.
package yolo

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/detection"
)

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("yolo: detector closed")

// Detector is a YOLOv8 object detector.
type Detector struct {
	mu     sync.Mutex
	net    gocv.Net
	closed bool

	config    detection.Config
	inputSize image.Point
	logger    *slog.Logger
}

// New loads the ONNX model named in cfg.
func New(cfg detection.Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Detector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    log.Component("yolo"),
	}, nil
}

// Detect implements detection.Detector.
func (d *Detector) Detect(frame *camera.Frame) ([]detection.Detection, error) {
	if frame == nil || frame.Img == nil {
		return nil, errors.New("yolo: empty frame")
	}

	img, err := gocv.ImageToMatRGB(frame.Img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("yolo: empty frame")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	// Output shape is [1, 84, 8400]: 4 box values plus 80 class scores per candidate.
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}
	attrs, candidates := sizes[1], sizes[2]

	scaleX := float32(img.Cols()) / float32(d.config.InputWidth)
	scaleY := float32(img.Rows()) / float32(d.config.InputHeight)

	raw := Decode(data, attrs, candidates, scaleX, scaleY, float32(d.config.ConfidenceThresh))
	dets := detection.NMS(raw, d.config.NMSThresh)
	if len(dets) > 0 {
		d.logger.Debug("objects detected", "count", len(dets), "candidates", len(raw))
	}
	return dets, nil
}

// Decode turns a column-major YOLOv8 output tensor into pixel-space detections.
// Candidates whose best class score is below thresh are dropped. NMS is not applied.
func Decode(data []float32, attrs, candidates int, scaleX, scaleY, thresh float32) []detection.Detection {
	if attrs < 5 || len(data) < attrs*candidates {
		return nil
	}

	var out []detection.Detection
	for i := 0; i < candidates; i++ {
		best, classID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if s := data[c*candidates+i]; s > best {
				best, classID = s, c-4
			}
		}
		if best < thresh {
			continue
		}

		cx := data[0*candidates+i]
		cy := data[1*candidates+i]
		w := data[2*candidates+i]
		h := data[3*candidates+i]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		out = append(out, detection.Detection{
			Label:      detection.ClassName(classID),
			Box:        image.Rect(x1, y1, x2, y2),
			Confidence: float64(best),
		})
	}
	return out
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}
