package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Speaker for testing.
type Mock struct {
	// SpeakFunc, if set, decides the result of Speak.
	SpeakFunc func(ctx context.Context, text, lang string) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one Speak invocation.
type MockCall struct {
	Text string
	Lang string
	Time time.Time
}

// NewMock creates a mock that always succeeds.
func NewMock() *Mock {
	return &Mock{}
}

// Speak records the call.
func (m *Mock) Speak(ctx context.Context, text, lang string) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, Lang: lang, Time: time.Now()})
	fn := m.SpeakFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, lang)
	}
	return nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of Speak calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}
