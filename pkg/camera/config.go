// Package camera owns the video source: a capture worker keeps the latest
// frame, and readers get their own copy.
//
// Runtime-tunable settings follow the Config / Validate / Manager / preset
// pattern used for the autopilot.
package camera

// Config holds camera parameters that can be changed over the API.
type Config struct {
	// Device is the V4L2 index passed to the capture backend.
	Device int `json:"device"`

	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Capture FPS requested from the driver
	Quality   int `json:"quality"`   // JPEG quality 1-100 for the video stream

	// StreamFPS caps how often annotated frames are encoded for viewers.
	StreamFPS int `json:"stream_fps"`
}

// Capture limits for USB webcams on the Pi.
const (
	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxFramerate = 60
)

// DefaultConfig returns 640x480, which keeps YOLO inference near real time on a Pi.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		StreamFPS: 15,
	}
}

// Validate checks ranges and returns a list of problems, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.StreamFPS < 1 || c.StreamFPS > c.Framerate {
		errors = append(errors, "stream_fps must be between 1 and framerate")
	}

	return errors
}
