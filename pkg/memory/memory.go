// Package memory persists the user-editable settings of the robot: the
// custom question/answer table and the wake word.
package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/state"
)

// FileName is the settings file inside the data directory.
const FileName = "settings.json"

// Settings is the persisted document.
type Settings struct {
	WakeWord  string       `json:"wake_word,omitempty"`
	Responses []state.Pair `json:"responses"`
	SavedAt   time.Time    `json:"saved_at"`
}

// Memory serializes Settings to a Store.
type Memory struct {
	store  Store
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Memory on store. A nil store uses an in-memory one.
func New(store Store) *Memory {
	if store == nil {
		store = &MemStore{}
	}
	return &Memory{store: store, logger: log.Component("memory")}
}

// NewWithFile persists to a JSON file.
func NewWithFile(path string) *Memory {
	return New(NewJSONStore(path))
}

// Load returns the saved settings. ok is false when nothing was saved yet.
func (m *Memory) Load() (s Settings, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.store.Load()
	if err != nil {
		return Settings{}, false, err
	}
	if len(data) == 0 {
		return Settings{}, false, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return s, true, nil
}

// Save writes s.
func (m *Memory) Save(s Settings) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(data)
}

// Capture reads the persisted fields out of st.
func Capture(st *state.State) Settings {
	return Settings{
		WakeWord:  st.WakeWord(),
		Responses: st.Responses(),
	}
}

// Restore loads saved settings into st. Invalid entries are logged and
// skipped so a hand-edited file cannot block startup.
func (m *Memory) Restore(st *state.State) error {
	s, ok, err := m.Load()
	if err != nil || !ok {
		return err
	}

	if s.WakeWord != "" {
		if _, err := st.SetWakeWord(s.WakeWord); err != nil {
			m.logger.Warn("ignoring saved wake word", "error", err)
		}
	}

	pairs := make([]state.Pair, 0, len(s.Responses))
	for _, p := range s.Responses {
		if p.Question == "" {
			m.logger.Warn("ignoring saved response without question", "answer", p.Answer)
			continue
		}
		pairs = append(pairs, p)
	}
	if err := st.ReplaceResponses(pairs); err != nil {
		return err
	}

	m.logger.Info("settings restored", "wake_word", st.WakeWord(), "responses", len(pairs))
	return nil
}

// Persist saves the current settings of st. Failures are logged and
// returned; callers treat them as non-fatal.
func (m *Memory) Persist(st *state.State) error {
	if err := m.Save(Capture(st)); err != nil {
		m.logger.Warn("persist settings failed", "error", err)
		return err
	}
	return nil
}

// Close releases the store.
func (m *Memory) Close() error {
	return m.store.Close()
}
