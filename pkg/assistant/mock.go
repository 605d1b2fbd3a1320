package assistant

import (
	"context"
	"sync"
)

// MockCall records one Generate call.
type MockCall struct {
	Prompt string
	Image  []byte
}

// Mock is a scripted Provider for tests.
type Mock struct {
	// Reply is returned when GenerateFunc is nil.
	Reply string
	Err   error

	GenerateFunc func(ctx context.Context, prompt string, jpeg []byte) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// Generate implements Provider.
func (m *Mock) Generate(ctx context.Context, prompt string, jpeg []byte) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Image: jpeg})
	fn, reply, err := m.GenerateFunc, m.Reply, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, jpeg)
	}
	return reply, err
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Provider = (*Mock)(nil)
