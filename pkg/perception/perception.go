// Package perception runs the camera-to-state loop: read the latest frame,
// detect objects, publish them, and greet newly seen people and pets.
package perception

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/detection"
	"github.com/Preet3627/Saras-AI/pkg/state"
	"github.com/Preet3627/Saras-AI/pkg/tts"
	"github.com/Preet3627/Saras-AI/pkg/worker"
)

// Config holds the loop's tunables.
type Config struct {
	Interval    time.Duration `json:"interval"`
	IdleDelay   time.Duration `json:"idle_delay"`
	GreetLabels []string      `json:"greet_labels"`
	BucketWidth int           `json:"bucket_width"`
	Greeting    string        `json:"greeting"`
	Language    string        `json:"language"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Interval:    100 * time.Millisecond,
		IdleDelay:   50 * time.Millisecond,
		GreetLabels: []string{"person", "dog"},
		BucketWidth: 50,
		Greeting:    "નમસ્તે",
		Language:    tts.LangGujarati,
	}
}

// EntityKey identifies an entity across frames by label and a coarse
// horizontal bucket of its box. Two people standing apart get different
// keys; a person walking across the frame gets a new key per bucket.
func EntityKey(d detection.Detection, bucketWidth int) string {
	if bucketWidth <= 0 {
		bucketWidth = 50
	}
	bucket := int(math.Floor(float64(d.Box.Min.X) / float64(bucketWidth)))
	return fmt.Sprintf("%s_%d", d.Label, bucket)
}

// FrameSource is the capture side of the loop.
type FrameSource interface {
	ReadFrame() (*camera.Frame, bool)
}

// Loop ties a frame source and detector to the shared state.
type Loop struct {
	cfg      Config
	frames   FrameSource
	detector detection.Detector
	state    *state.State
	speaker  tts.Speaker
	queue    *worker.Queue

	// OnCycle, if set, is called after each processed frame.
	OnCycle func(dets int, err error)
	// OnGreet, if set, is called for every greeting submitted.
	OnGreet func(key string)

	lastErrLog time.Time
	errCount   uint64

	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithSpeaker sets where greetings go. Without one, greeting is disabled.
func WithSpeaker(sp tts.Speaker, q *worker.Queue) Option {
	return func(l *Loop) { l.speaker, l.queue = sp, q }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loop) { l.logger = lg }
}

// New creates a perception loop.
func New(cfg Config, frames FrameSource, det detection.Detector, st *state.State, opts ...Option) *Loop {
	l := &Loop{
		cfg:      cfg,
		frames:   frames,
		detector: det,
		state:    st,
		logger:   log.Component("perception"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Step runs one cycle and reports whether a frame was available.
func (l *Loop) Step(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	frame, ok := l.frames.ReadFrame()
	if !ok {
		return false
	}

	dets, err := l.detector.Detect(frame)
	if err != nil {
		l.errCount++
		if time.Since(l.lastErrLog) > 5*time.Second {
			l.logger.Warn("detection failed", "error", err, "total_errors", l.errCount)
			l.lastErrLog = time.Now()
		}
		if l.OnCycle != nil {
			l.OnCycle(0, err)
		}
		return true
	}

	l.state.PublishDetections(dets, frame.Width())
	l.greet(dets)

	if l.OnCycle != nil {
		l.OnCycle(len(dets), nil)
	}
	return true
}

func (l *Loop) greet(dets []detection.Detection) {
	now := time.Now()
	for _, d := range detection.Filter(dets, l.cfg.GreetLabels...) {
		key := EntityKey(d, l.cfg.BucketWidth)
		if !l.state.MarkSeen(key, now) {
			continue
		}
		l.logger.Info("new entity", "key", key, "confidence", d.Confidence)
		if l.speaker == nil || l.queue == nil {
			continue
		}

		text, lang, sp := l.cfg.Greeting, l.cfg.Language, l.speaker
		l.queue.Submit("greet "+key, func(ctx context.Context) {
			if err := sp.Speak(ctx, text, lang); err != nil {
				l.logger.Warn("greeting failed", "error", err)
			}
		})
		if l.OnGreet != nil {
			l.OnGreet(key)
		}
	}
}

// Run loops until ctx is cancelled or the state stops running.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("perception loop started", "interval", l.cfg.Interval)
	defer l.logger.Info("perception loop stopped")

	for ctx.Err() == nil && l.state.Running() {
		delay := l.cfg.Interval
		if !l.Step(ctx) {
			delay = l.cfg.IdleDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-l.state.Done():
			return
		case <-time.After(delay):
		}
	}
}
