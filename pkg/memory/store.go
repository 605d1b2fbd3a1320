package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a persistence backend for one serialized document.
type Store interface {
	// Save replaces the stored document.
	Save(data []byte) error

	// Load returns the stored document, or nil if nothing was saved yet.
	Load() ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}

// JSONStore keeps the document in a single file. Writes go to a temporary
// file that is renamed over the target, so a crash never leaves a
// truncated file behind.
type JSONStore struct {
	FilePath string
}

// NewJSONStore creates a file store. An empty path disables persistence.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{FilePath: path}
}

// Save writes data atomically.
func (s *JSONStore) Save(data []byte) error {
	if s.FilePath == "" {
		return nil
	}

	dir := filepath.Dir(s.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.FilePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.FilePath); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// Load reads the file. A missing file is not an error.
func (s *JSONStore) Load() ([]byte, error) {
	if s.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.FilePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Close is a no-op for files.
func (s *JSONStore) Close() error {
	return nil
}

// MemStore keeps the document in memory. Used by tests and when no data
// directory is configured.
type MemStore struct {
	mu    sync.Mutex
	data  []byte
	saves int

	// Err, if set, is returned by Save and Load.
	Err error
}

// Save implements Store.
func (s *MemStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Load implements Store.
func (s *MemStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]byte(nil), s.data...), nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

// Saves returns how many times Save succeeded.
func (s *MemStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var (
	_ Store = (*JSONStore)(nil)
	_ Store = (*MemStore)(nil)
)
