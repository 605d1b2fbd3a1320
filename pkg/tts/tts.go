// Package tts speaks text aloud.
//
// Speakers are fire-and-forget from the caller's point of view: the control
// plane submits Speak calls through a worker queue and never waits on audio.
//
//	sp := tts.NewEspeak()
//	err := sp.Speak(ctx, "નમસ્તે", "gu")
package tts

import (
	"context"
	"strings"
)

// Speaker converts text to audible speech in the given language.
type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// Language codes used by the robot.
const (
	LangEnglish  = "en"
	LangGujarati = "gu"
	LangHindi    = "hi"
)

// Voices maps a language code to an espeak voice.
var Voices = map[string]string{
	LangEnglish:  "en+f3",
	LangGujarati: "gu",
	LangHindi:    "hi",
}

// VoiceFor returns the espeak voice for lang, defaulting to English.
func VoiceFor(lang string) string {
	if v, ok := Voices[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return v
	}
	return Voices[LangEnglish]
}

// Sanitize strips characters that have no business in spoken text.
// Quotes, backticks and semicolons are removed and whitespace is collapsed.
func Sanitize(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', ';':
			return -1
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
