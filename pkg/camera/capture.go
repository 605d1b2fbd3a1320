package camera

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
)

var (
	// ErrAlreadyStarted is returned by Start on a running capture.
	ErrAlreadyStarted = errors.New("camera: capture already started")
	// ErrNoSource is returned when the capture has nothing to read from.
	ErrNoSource = errors.New("camera: no source")
)

// Source produces frames. Read may block until the next frame is ready.
type Source interface {
	Read() (*image.RGBA, error)
	Close() error
}

// Capture runs a worker that keeps only the most recent frame.
// The lock is held just long enough to swap the pointer, so readers never
// stall the producer.
type Capture struct {
	srcMu sync.Mutex
	src   Source

	mu     sync.RWMutex
	latest *Frame

	seq    uint64
	frames atomic.Uint64
	errs   atomic.Uint64

	interval time.Duration
	errDelay time.Duration

	// OnFrame, if set, is called from the capture worker after each swap.
	OnFrame func(seq uint64)
	// OnError, if set, is called for each failed read.
	OnError func(err error)

	cancel context.CancelFunc
	done   chan struct{}

	logger *slog.Logger
}

// CaptureOption configures a Capture.
type CaptureOption func(*Capture)

// WithInterval paces reads for sources that do not block on their own.
func WithInterval(d time.Duration) CaptureOption {
	return func(c *Capture) { c.interval = d }
}

// WithCaptureLogger sets the logger.
func WithCaptureLogger(l *slog.Logger) CaptureOption {
	return func(c *Capture) { c.logger = l }
}

// NewCapture creates a capture over src. Call Start to begin reading.
func NewCapture(src Source, opts ...CaptureOption) *Capture {
	c := &Capture{
		src:      src,
		errDelay: 50 * time.Millisecond,
		logger:   log.Component("camera"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the capture worker.
func (c *Capture) Start(ctx context.Context) error {
	c.srcMu.Lock()
	src := c.src
	c.srcMu.Unlock()
	if src == nil {
		return ErrNoSource
	}

	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(ctx, done)
	c.logger.Info("capture started")
	return nil
}

func (c *Capture) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var lastErrLog time.Time
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.srcMu.Lock()
		img, err := c.src.Read()
		c.srcMu.Unlock()

		if err != nil {
			n := c.errs.Add(1)
			if c.OnError != nil {
				c.OnError(err)
			}
			if time.Since(lastErrLog) > 5*time.Second {
				c.logger.Warn("frame read failed", "error", err, "total_errors", n)
				lastErrLog = time.Now()
			}
			if !sleepCtx(ctx, c.errDelay) {
				return
			}
			continue
		}
		if img == nil {
			continue
		}

		c.seq++
		frame := &Frame{Img: img, Seq: c.seq, At: time.Now()}

		c.mu.Lock()
		c.latest = frame
		c.mu.Unlock()

		c.frames.Add(1)
		if c.OnFrame != nil {
			c.OnFrame(frame.Seq)
		}

		if c.interval > 0 && !sleepCtx(ctx, c.interval) {
			return
		}
	}
}

// ReadFrame returns a copy of the latest frame, or false if none has been captured yet.
func (c *Capture) ReadFrame() (*Frame, bool) {
	c.mu.RLock()
	latest := c.latest
	c.mu.RUnlock()

	if latest == nil {
		return nil, false
	}
	// The worker never mutates a published frame, so copying outside the lock is safe.
	return latest.Clone(), true
}

// Replace swaps the source, closing the old one. Used when the camera
// config changes resolution or device.
func (c *Capture) Replace(src Source) error {
	c.srcMu.Lock()
	old := c.src
	c.src = src
	c.srcMu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// Stop ends the worker and closes the source. Safe to call more than once.
func (c *Capture) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.srcMu.Lock()
	if c.src != nil {
		if err := c.src.Close(); err != nil {
			c.logger.Warn("camera close failed", "error", err)
		}
		c.src = nil
	}
	c.srcMu.Unlock()
}

// Frames returns the number of frames captured.
func (c *Capture) Frames() uint64 { return c.frames.Load() }

// Errors returns the number of failed reads.
func (c *Capture) Errors() uint64 { return c.errs.Load() }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
