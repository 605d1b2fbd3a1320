package tts

import (
	"context"
	"errors"
	"reflect"
	"testing"

	ilog "github.com/Preet3627/Saras-AI/internal/log"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello world", "hello world"},
		{`say "hi"; rm -rf /`, "say hi rm -rf /"},
		{"it's   fine\n\tok", "its fine ok"},
		{"`;'\"", ""},
		{"નમસ્તે", "નમસ્તે"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestVoiceFor(t *testing.T) {
	tests := map[string]string{"en": "en+f3", "gu": "gu", "HI": "hi", "fr": "en+f3", "": "en+f3"}
	for lang, want := range tests {
		if got := VoiceFor(lang); got != want {
			t.Errorf("VoiceFor(%q) = %q, want %q", lang, got, want)
		}
	}
}

func TestEspeak_Args(t *testing.T) {
	e := NewEspeak()
	e.logger = ilog.Discard()

	var gotName string
	var gotArgs []string
	e.run = func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}

	if err := e.Speak(context.Background(), `Hello; "world"`, "en"); err != nil {
		t.Fatal(err)
	}
	want := []string{"-v", "en+f3", "-k5", "-s150", "Hello world"}
	if gotName != "espeak" || !reflect.DeepEqual(gotArgs, want) {
		t.Errorf("ran %s %v, want espeak %v", gotName, gotArgs, want)
	}
}

func TestEspeak_Errors(t *testing.T) {
	e := NewEspeak()
	e.logger = ilog.Discard()
	e.run = func(context.Context, string, ...string) error { return errors.New("exit status 1") }

	if err := e.Speak(context.Background(), ";;", "en"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}

	err := e.Speak(context.Background(), "hi", "en")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "espeak" {
		t.Errorf("err = %v, want ProviderError", err)
	}
}

func TestChain(t *testing.T) {
	failing := NewMock()
	failing.SpeakFunc = func(context.Context, string, string) error { return errors.New("no audio device") }
	backup := NewMock()

	c, err := NewChain(failing, backup)
	if err != nil {
		t.Fatal(err)
	}
	c.logger = ilog.Discard()

	if err := c.Speak(context.Background(), "hello", "en"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if failing.CallCount() != 1 || backup.CallCount() != 1 {
		t.Errorf("calls = %d, %d", failing.CallCount(), backup.CallCount())
	}

	only, _ := NewChain(failing)
	only.logger = ilog.Discard()
	var ce *ChainError
	if err := only.Speak(context.Background(), "hello", "en"); !errors.As(err, &ce) || len(ce.Errors) != 1 {
		t.Errorf("err = %v, want ChainError", err)
	}

	if _, err := NewChain(); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("empty chain err = %v", err)
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	m.Speak(context.Background(), "નમસ્તે", "gu")
	calls := m.Calls()
	if len(calls) != 1 || calls[0].Lang != "gu" {
		t.Errorf("calls = %+v", calls)
	}
	m.Reset()
	if m.CallCount() != 0 {
		t.Error("Reset did not clear")
	}
}

func TestLogSpeaker(t *testing.T) {
	if err := (Log{Logger: ilog.Discard()}).Speak(context.Background(), "hi", "en"); err != nil {
		t.Error(err)
	}
}
