// Package assistant answers questions and describes camera frames through a
// multimodal language model. Failures never surface to callers: every
// operation degrades to a fixed apology sentence that can be spoken aloud.
package assistant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/camera"
)

// Fallback replies.
const (
	Apology      = "I'm sorry, I encountered an error trying to process that."
	BlindApology = "I'm sorry, I couldn't see anything."
)

// DescribePrompt is sent alongside the frame for scene descriptions.
const DescribePrompt = "Describe this scene in detail."

// Provider generates text from a prompt and an optional JPEG image.
type Provider interface {
	Generate(ctx context.Context, prompt string, jpeg []byte) (string, error)
}

// Assistant wraps a Provider with apology fallbacks.
type Assistant struct {
	provider Provider
	quality  int
	logger   *slog.Logger

	// OnResult, if set, is called after every provider call.
	OnResult func(op string, err error)
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithJPEGQuality sets the encode quality for frames sent to the model.
func WithJPEGQuality(q int) AssistantOption {
	return func(a *Assistant) { a.quality = q }
}

// WithAssistantLogger sets the logger.
func WithAssistantLogger(l *slog.Logger) AssistantOption {
	return func(a *Assistant) { a.logger = l }
}

// New creates an Assistant. A nil provider is allowed; every call then
// returns Apology.
func New(p Provider, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		provider: p,
		quality:  80,
		logger:   log.Component("assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether a provider is configured.
func (a *Assistant) Available() bool {
	return a.provider != nil
}

// Ask sends a text prompt.
func (a *Assistant) Ask(ctx context.Context, prompt string) string {
	if a.provider == nil {
		return Apology
	}
	reply, err := a.provider.Generate(ctx, prompt, nil)
	a.report("ask", err)
	if err != nil || strings.TrimSpace(reply) == "" {
		return Apology
	}
	return reply
}

// DescribeScene sends frame with DescribePrompt. A nil frame yields
// BlindApology.
func (a *Assistant) DescribeScene(ctx context.Context, frame *camera.Frame) string {
	if frame == nil || frame.Img == nil {
		return BlindApology
	}
	if a.provider == nil {
		return Apology
	}
	data, err := frame.JPEG(a.quality)
	if err != nil {
		a.logger.Warn("encode frame failed", "error", err)
		return Apology
	}
	reply, err := a.provider.Generate(ctx, DescribePrompt, data)
	a.report("describe", err)
	if err != nil || strings.TrimSpace(reply) == "" {
		return Apology
	}
	return reply
}

func (a *Assistant) report(op string, err error) {
	if err != nil {
		a.logger.Warn("provider call failed", "op", op, "error", err)
	}
	if a.OnResult != nil {
		a.OnResult(op, err)
	}
}
