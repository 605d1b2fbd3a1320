// Package stream renders annotated JPEG frames and fans them out to
// viewers (MJPEG and WebSocket).
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/detection"
)

// FrameSource provides the latest camera frame.
type FrameSource interface {
	ReadFrame() (*camera.Frame, bool)
}

// DetectionSource provides the latest published detections.
type DetectionSource interface {
	Detections() ([]detection.Detection, time.Time, bool)
}

// Config tunes the broadcaster.
type Config struct {
	Interval time.Duration
	Quality  int

	// Width and Height size the colour bars shown when no frame exists.
	Width  int
	Height int

	// Buffer is the per-subscriber channel size.
	Buffer int
}

// DefaultConfig renders about 30 frames per second.
func DefaultConfig() Config {
	return Config{
		Interval: 33 * time.Millisecond,
		Quality:  80,
		Width:    640,
		Height:   480,
		Buffer:   2,
	}
}

// Broadcaster renders one annotated JPEG per interval and fans it out.
type Broadcaster struct {
	cfg    Config
	frames FrameSource
	dets   DetectionSource

	// Hazards, if set, returns labels drawn in the hazard colour.
	Hazards func() []string

	// Quality, if set, overrides Config.Quality on every frame.
	Quality func() int

	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	latest  []byte
	bars    []byte

	rendered atomic.Uint64
	skipped  atomic.Uint64

	// OnFrame, if set, is called after every broadcast.
	OnFrame func(size, clients int)

	logger *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) { b.logger = l }
}

// New creates a Broadcaster. frames may be nil when the camera is
// disabled; viewers then get colour bars.
func New(cfg Config, frames FrameSource, dets DetectionSource, opts ...Option) *Broadcaster {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 2
	}
	b := &Broadcaster{
		cfg:     cfg,
		frames:  frames,
		dets:    dets,
		clients: make(map[int]chan []byte),
		logger:  log.Component("stream"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a viewer. The returned function unsubscribes and
// closes the channel.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan []byte, b.cfg.Buffer)
	b.clients[id] = ch
	n := len(b.clients)
	b.mu.Unlock()

	b.logger.Debug("viewer subscribed", "id", id, "clients", n)

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		b.logger.Debug("viewer unsubscribed", "id", id, "clients", len(b.clients))
	}
}

// Clients returns the number of subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Render produces one annotated JPEG from the latest frame and detections.
func (b *Broadcaster) Render() ([]byte, error) {
	var frame *camera.Frame
	if b.frames != nil {
		frame, _ = b.frames.ReadFrame()
	}
	if frame == nil {
		return b.colorBars()
	}

	var dets []detection.Detection
	if b.dets != nil {
		dets, _, _ = b.dets.Detections()
	}
	var hazards []string
	if b.Hazards != nil {
		hazards = b.Hazards()
	}

	data, err := detection.Draw(frame, dets, hazards...).JPEG(b.quality())
	if err != nil {
		return nil, err
	}
	b.rendered.Add(1)
	return data, nil
}

func (b *Broadcaster) quality() int {
	if b.Quality != nil {
		if q := b.Quality(); q > 0 {
			return q
		}
	}
	return b.cfg.Quality
}

func (b *Broadcaster) colorBars() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bars == nil {
		f := &camera.Frame{Img: camera.ColorBars(b.cfg.Width, b.cfg.Height), At: time.Now()}
		data, err := f.JPEG(75)
		if err != nil {
			return nil, err
		}
		b.bars = data
	}
	return b.bars, nil
}

// Latest returns the last broadcast frame, rendering one if needed.
func (b *Broadcaster) Latest() ([]byte, error) {
	b.mu.Lock()
	data := b.latest
	b.mu.Unlock()
	if data != nil {
		return data, nil
	}
	return b.Render()
}

// Tick renders and broadcasts one frame if anybody is watching. It
// reports whether a frame was sent.
func (b *Broadcaster) Tick() bool {
	if b.Clients() == 0 {
		return false
	}

	data, err := b.Render()
	if err != nil {
		b.logger.Warn("render failed", "error", err)
		return false
	}
	b.broadcast(data)
	return true
}

func (b *Broadcaster) broadcast(data []byte) {
	b.mu.Lock()
	b.latest = data
	n := len(b.clients)
	for _, ch := range b.clients {
		select {
		case ch <- data:
		default:
			b.skipped.Add(1)
		}
	}
	b.mu.Unlock()

	if b.OnFrame != nil {
		b.OnFrame(len(data), n)
	}
}

// Run ticks every interval until ctx is cancelled, then closes every
// subscriber channel.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()
	defer b.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// Rendered returns how many camera frames were annotated.
func (b *Broadcaster) Rendered() uint64 { return b.rendered.Load() }

// Skipped returns how many deliveries were dropped for slow viewers.
func (b *Broadcaster) Skipped() uint64 { return b.skipped.Load() }
