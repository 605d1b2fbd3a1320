package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Preet3627/Saras-AI/internal/httpc"
)

const providerGemini = "gemini"

// Gemini calls the generateContent REST endpoint.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. An API key is required.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "assistant.gemini"),
	}, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Generate implements Provider. When jpeg is non-empty it is sent inline
// ahead of the prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string, jpeg []byte) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", WrapError(providerGemini, ErrEmptyPrompt)
	}

	var parts []geminiPart
	if len(jpeg) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(jpeg),
		}})
	}
	parts = append(parts, geminiPart{Text: prompt})

	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     g.config.Temperature,
			MaxOutputTokens: g.config.MaxTokens,
		},
	}
	if g.config.SystemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: g.config.SystemPrompt}}}
	}

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", WrapError(providerGemini, ctx.Err())
			case <-time.After(g.config.RetryDelay * time.Duration(attempt)):
			}
			g.logger.Debug("retrying", "attempt", attempt, "error", lastErr)
		}

		start := time.Now()
		text, err := g.call(ctx, &req)
		if err == nil {
			g.logger.Debug("generated",
				"model", g.config.Model,
				"image", len(jpeg) > 0,
				"latency_ms", time.Since(start).Milliseconds())
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	return "", lastErr
}

func (g *Gemini) call(ctx context.Context, req *geminiRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.config.BaseURL, "/"), g.config.Model, url.QueryEscape(g.config.APIKey))

	var resp geminiResponse
	err := httpc.DoJSON(ctx, g.http, http.MethodPost, endpoint, req, &resp)

	var statusErr *httpc.StatusError
	if errors.As(err, &statusErr) {
		msg := resp.Error.Message
		if msg == "" {
			msg = statusErr.Body
		}
		return "", &APIError{StatusCode: statusErr.StatusCode, Message: msg, Provider: providerGemini}
	}
	if err != nil {
		// Transport errors carry the URL, which carries the key.
		return "", WrapError(providerGemini, errors.New(strings.ReplaceAll(err.Error(), g.config.APIKey, "***")))
	}
	if resp.Error.Message != "" {
		return "", &APIError{StatusCode: resp.Error.Code, Message: resp.Error.Message, Provider: providerGemini}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", WrapError(providerGemini, ErrNoContent)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.config.Model
}

var _ Provider = (*Gemini)(nil)
