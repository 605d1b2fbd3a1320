package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/Preet3627/Saras-AI/internal/log"
)

// Espeak speaks through the espeak command line tool.
type Espeak struct {
	Binary string
	Pitch  int // -k capitals emphasis
	Rate   int // -s words per minute

	// run executes the command; replaced in tests.
	run func(ctx context.Context, name string, args ...string) error

	logger *slog.Logger
}

// NewEspeak returns a speaker using the espeak binary on PATH.
func NewEspeak() *Espeak {
	return &Espeak{
		Binary: "espeak",
		Pitch:  5,
		Rate:   150,
		run: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%w: %s", err, out)
			}
			return nil
		},
		logger: log.Component("tts"),
	}
}

// Available reports whether the espeak binary can be found.
func (e *Espeak) Available() bool {
	_, err := exec.LookPath(e.Binary)
	return err == nil
}

// Args returns the argument list for speaking text in lang.
// The text is always a single argument so nothing is interpreted by a shell.
func (e *Espeak) Args(text, lang string) []string {
	return []string{
		"-v", VoiceFor(lang),
		"-k" + strconv.Itoa(e.Pitch),
		"-s" + strconv.Itoa(e.Rate),
		text,
	}
}

// Speak implements Speaker. It blocks until espeak exits.
func (e *Espeak) Speak(ctx context.Context, text, lang string) error {
	clean := Sanitize(text)
	if clean == "" {
		return ErrEmptyText
	}

	e.logger.Debug("speaking", "lang", lang, "chars", len(clean))
	if err := e.run(ctx, e.Binary, e.Args(clean, lang)...); err != nil {
		return &ProviderError{Provider: "espeak", Err: err}
	}
	return nil
}
