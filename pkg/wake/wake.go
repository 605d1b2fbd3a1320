// Package wake listens for the wake phrase in recognized speech and routes
// the request that follows it to the conversation handler.
package wake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/led"
)

// Conversation is the control side of the listener.
type Conversation interface {
	Converse(ctx context.Context, utterance string) string
	WakeWord() string
	PlayLED(name string) error
}

// Config tunes the listener.
type Config struct {
	// Name enables the "hi <name>" alias next to the wake word.
	Name string

	// FollowUp is how long a bare wake phrase keeps the listener armed.
	FollowUp time.Duration
}

// DefaultConfig answers to "hi saras" and waits 8s for a follow-up.
func DefaultConfig() Config {
	return Config{Name: "saras", FollowUp: 8 * time.Second}
}

// Listener consumes utterances.
type Listener struct {
	cfg  Config
	src  Source
	conv Conversation
	now  func() time.Time

	mu      sync.Mutex
	armedAt time.Time
	armed   bool
	wakes   uint64

	// OnReply, if set, is called for every routed request.
	OnReply func(request, reply string)

	logger *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Listener) { l.logger = lg }
}

// New creates a Listener.
func New(cfg Config, src Source, conv Conversation, opts ...Option) *Listener {
	l := &Listener{
		cfg:    cfg,
		src:    src,
		conv:   conv,
		now:    time.Now,
		logger: log.Component("wake"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handle processes one utterance. It returns the reply and whether the
// utterance was routed to the conversation handler.
func (l *Listener) Handle(ctx context.Context, utterance string) (string, bool) {
	text := simplify(utterance)
	if text == "" {
		return "", false
	}

	if rest, ok := l.matchWake(text); ok {
		l.logger.Info("wake phrase heard", "utterance", utterance)
		if err := l.conv.PlayLED(led.Wake); err != nil {
			l.logger.Warn("wake animation failed", "error", err)
		}

		l.mu.Lock()
		l.wakes++
		if rest == "" {
			l.armed, l.armedAt = true, l.now()
		} else {
			l.armed = false
		}
		l.mu.Unlock()

		if rest == "" {
			return "", false
		}
		return l.route(ctx, rest), true
	}

	l.mu.Lock()
	followUp := l.armed && l.now().Sub(l.armedAt) <= l.cfg.FollowUp
	l.armed = false
	l.mu.Unlock()

	if !followUp {
		return "", false
	}
	return l.route(ctx, text), true
}

// matchWake finds the earliest wake phrase in text and returns what follows it.
func (l *Listener) matchWake(text string) (string, bool) {
	padded := " " + text + " "
	best := -1
	var phrase string
	for _, p := range l.phrases() {
		if i := strings.Index(padded, " "+p+" "); i >= 0 && (best < 0 || i < best) {
			best, phrase = i, p
		}
	}
	if best < 0 {
		return "", false
	}
	return strings.TrimSpace(padded[best+len(phrase)+2:]), true
}

func (l *Listener) phrases() []string {
	var out []string
	if w := simplify(l.conv.WakeWord()); w != "" {
		out = append(out, w)
	}
	if n := simplify(l.cfg.Name); n != "" {
		out = append(out, "hi "+n)
	}
	return out
}

func (l *Listener) route(ctx context.Context, request string) string {
	reply := l.conv.Converse(ctx, request)
	l.logger.Debug("request routed", "request", request, "reply", reply)
	if l.OnReply != nil {
		l.OnReply(request, reply)
	}
	return reply
}

// Armed reports whether a bare wake phrase is waiting for its follow-up.
func (l *Listener) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.armed && l.now().Sub(l.armedAt) <= l.cfg.FollowUp
}

// Wakes returns how many wake phrases were heard.
func (l *Listener) Wakes() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wakes
}

// Run consumes the source until it ends or ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("wake listener started", "wake_word", l.conv.WakeWord())
	for {
		u, err := l.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			l.logger.Info("utterance source closed")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.Handle(ctx, u)
	}
}

// simplify lower-cases s and turns punctuation into single spaces.
func simplify(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
