package webcam

import (
	"testing"

	"github.com/Preet3627/Saras-AI/pkg/camera"
)

func TestOpen_MissingDevice(t *testing.T) {
	cfg := camera.DefaultConfig()
	cfg.Device = 99
	w, err := Open(cfg)
	if err == nil {
		w.Close()
		t.Skip("device 99 exists on this machine")
	}
}
