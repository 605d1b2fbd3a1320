// Package remote polls the IR receiver and turns key presses into control
// commands.
package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/control"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/state"
)

// KeySource returns the last key pressed, if any.
type KeySource interface {
	Key() (key string, ok bool, err error)
}

// IRReader is the board side of the receiver.
type IRReader interface {
	IRKey() (string, bool, error)
}

type boardKeys struct{ r IRReader }

func (b boardKeys) Key() (string, bool, error) { return b.r.IRKey() }

// FromBoard adapts the board's IR query to a KeySource.
func FromBoard(r IRReader) KeySource { return boardKeys{r} }

// Commander is the part of control.Service the remote uses.
type Commander interface {
	Command(ctx context.Context, req control.Request) control.Result
	SetMode(text, source string) (state.Transition, error)
}

// Action is what a key does: drive a maneuver or select a mode.
type Action struct {
	Command string
	Mode    string
}

// DefaultKeymap maps the remote's keys.
func DefaultKeymap() map[string]Action {
	return map[string]Action{
		"UP":    {Command: drive.Forward.String()},
		"DOWN":  {Command: drive.Backward.String()},
		"LEFT":  {Command: drive.RotateLeft.String()},
		"RIGHT": {Command: drive.RotateRight.String()},
		"C":     {Command: drive.StrafeLeft.String()},
		"D":     {Command: drive.StrafeRight.String()},
		"OK":    {Command: drive.Stop.String()},
		"0":     {Mode: state.Off.String()},
		"1":     {Mode: state.Avoid.String()},
		"2":     {Mode: state.Traffic.String()},
		"3":     {Mode: state.Follow.String()},
		"4":     {Mode: state.Explore.String()},
	}
}

// Config holds the polling cadence.
type Config struct {
	Poll     time.Duration
	Debounce time.Duration
	Backoff  time.Duration
	Speed    float64
	Keymap   map[string]Action
}

// DefaultConfig returns the standard cadence: poll every 100ms, pause
// 200ms after a handled key, back off 2s after a read error.
func DefaultConfig() Config {
	return Config{
		Poll:     100 * time.Millisecond,
		Debounce: 200 * time.Millisecond,
		Backoff:  2 * time.Second,
		Speed:    drive.DefaultSpeed,
		Keymap:   DefaultKeymap(),
	}
}

// Listener polls a KeySource.
type Listener struct {
	cfg  Config
	keys KeySource
	ctl  Commander

	sleep func(ctx context.Context, d time.Duration) bool

	mu            sync.Mutex
	handled       uint64
	errorCount    uint64
	lastErrorTime time.Time

	// OnKey, if set, is called for every key read.
	OnKey func(key string, handled bool)

	logger *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithSleep replaces the wait between polls.
func WithSleep(fn func(ctx context.Context, d time.Duration) bool) Option {
	return func(l *Listener) { l.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Listener) { l.logger = lg }
}

// New creates a Listener.
func New(cfg Config, keys KeySource, ctl Commander, opts ...Option) *Listener {
	if cfg.Keymap == nil {
		cfg.Keymap = DefaultKeymap()
	}
	l := &Listener{
		cfg:    cfg,
		keys:   keys,
		ctl:    ctl,
		sleep:  sleepCtx,
		logger: log.Component("remote"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Poll reads one key, handles it, and returns how long to wait before the
// next poll.
func (l *Listener) Poll(ctx context.Context) time.Duration {
	key, ok, err := l.keys.Key()
	if err != nil {
		l.logError(err)
		return l.cfg.Backoff
	}
	if !ok {
		return l.cfg.Poll
	}

	handled := l.handle(ctx, key)
	if l.OnKey != nil {
		l.OnKey(key, handled)
	}
	if !handled {
		return l.cfg.Poll
	}
	return l.cfg.Debounce
}

func (l *Listener) handle(ctx context.Context, key string) bool {
	action, ok := l.cfg.Keymap[key]
	if !ok {
		l.logger.Debug("unmapped key", "key", key)
		return false
	}

	if action.Mode != "" {
		if _, err := l.ctl.SetMode(action.Mode, state.SourceRemote); err != nil {
			l.logger.Warn("remote mode change failed", "key", key, "error", err)
			return false
		}
	} else {
		res := l.ctl.Command(ctx, control.Request{
			Command: action.Command,
			Speed:   l.cfg.Speed,
			Source:  state.SourceRemote,
		})
		if !res.OK() {
			return false
		}
	}

	l.mu.Lock()
	l.handled++
	l.mu.Unlock()
	l.logger.Debug("key handled", "key", key, "command", action.Command, "mode", action.Mode)
	return true
}

func (l *Listener) logError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorCount++
	if time.Since(l.lastErrorTime) > 5*time.Second {
		l.logger.Warn("ir read failed", "error", err, "error_count", l.errorCount)
		l.lastErrorTime = time.Now()
	}
}

// Run polls until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("remote listener started")
	defer l.logger.Info("remote listener stopped")
	for {
		if ctx.Err() != nil {
			return
		}
		if !l.sleep(ctx, l.Poll(ctx)) {
			return
		}
	}
}

// Handled returns how many keys produced a command.
func (l *Listener) Handled() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handled
}

// Errors returns how many reads failed.
func (l *Listener) Errors() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCount
}

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
