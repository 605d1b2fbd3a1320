package tts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyText is returned when there is nothing left to say after sanitizing.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrProviderUnavailable is returned when a chain has no speakers.
	ErrProviderUnavailable = errors.New("tts: no speakers available")
)

// ProviderError wraps an error with the speaker that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ChainError collects the failure of every speaker in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "tts: all speakers failed: " + strings.Join(msgs, "; ")
}

func (e *ChainError) Unwrap() []error {
	return e.Errors
}
