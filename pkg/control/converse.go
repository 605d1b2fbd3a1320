package control

import (
	"context"
	"strings"
	"unicode"

	"github.com/Preet3627/Saras-AI/pkg/state"
)

// Built-in voice replies.
const (
	ReplyExplore = "Okay, I will look around for a book."
	ReplyFollow  = "Okay, I will follow the car."
	ReplyStop    = "Stopping."
)

type builtin struct {
	phrase string
	run    func(s *Service, ctx context.Context) (reply, lang string)
}

var builtins = []builtin{
	{"introduce yourself", func(s *Service, _ context.Context) (string, string) {
		return s.cfg.Introduction, s.cfg.IntroLanguage
	}},
	{"what do you see", func(s *Service, ctx context.Context) (string, string) {
		return s.Describe(ctx), s.cfg.ReplyLanguage
	}},
	{"find a book", func(s *Service, _ context.Context) (string, string) {
		s.SetMode(state.Explore.String(), state.SourceVoice)
		return ReplyExplore, s.cfg.ReplyLanguage
	}},
	{"follow the car", func(s *Service, _ context.Context) (string, string) {
		s.SetMode(state.Follow.String(), state.SourceVoice)
		return ReplyFollow, s.cfg.ReplyLanguage
	}},
	{"stop", func(s *Service, _ context.Context) (string, string) {
		s.SetMode(state.Off.String(), state.SourceVoice)
		if err := s.motors.Stop(); err != nil {
			s.logger.Warn("voice stop failed", "error", err)
		}
		return ReplyStop, s.cfg.ReplyLanguage
	}},
}

// Converse answers one spoken request and speaks the reply. Custom
// responses win over built-in phrases, which win over the assistant.
func (s *Service) Converse(ctx context.Context, utterance string) string {
	reply, lang := s.resolve(ctx, utterance)
	s.Speak(reply, lang)
	return reply
}

func (s *Service) resolve(ctx context.Context, utterance string) (string, string) {
	if answer, ok := s.st.LookupResponse(utterance); ok {
		s.logger.Debug("custom response", "utterance", utterance)
		return answer, s.cfg.ReplyLanguage
	}

	words := " " + simplify(utterance) + " "
	for _, b := range builtins {
		if strings.Contains(words, " "+b.phrase+" ") {
			s.logger.Debug("built-in", "phrase", b.phrase)
			return b.run(s, ctx)
		}
	}

	return s.assistant.Ask(ctx, utterance), s.cfg.ReplyLanguage
}

// simplify lower-cases u and turns punctuation into single spaces.
func simplify(u string) string {
	u = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, u)
	return strings.Join(strings.Fields(u), " ")
}
