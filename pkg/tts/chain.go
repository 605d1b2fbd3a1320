package tts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Preet3627/Saras-AI/internal/log"
)

// Chain tries speakers in order; the first success wins.
type Chain struct {
	speakers []Speaker
	logger   *slog.Logger
}

// NewChain creates a chain. At least one speaker is required.
func NewChain(speakers ...Speaker) (*Chain, error) {
	if len(speakers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{speakers: speakers, logger: log.Component("tts.chain")}, nil
}

// Speak implements Speaker.
func (c *Chain) Speak(ctx context.Context, text, lang string) error {
	var errs []error
	for i, s := range c.speakers {
		err := s.Speak(ctx, text, lang)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback speaker succeeded", "index", i)
			}
			return nil
		}
		if errors.Is(err, ErrEmptyText) {
			return err
		}
		errs = append(errs, err)
		c.logger.Warn("speaker failed, trying next", "index", i, "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return &ChainError{Errors: errs}
}

// Log is a speaker that only logs what would have been said.
// It is the last link when no audio output is available.
type Log struct {
	Logger *slog.Logger
}

// Speak implements Speaker.
func (l Log) Speak(_ context.Context, text, lang string) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Component("tts")
	}
	logger.Info("say", "lang", lang, "text", text)
	return nil
}
