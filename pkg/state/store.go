package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store loads and saves the persisted record.
type Store interface {
	Load() (Record, error)
	Save(r Record) error
}

// MemoryStore keeps the encoded record in memory, like the backup domain
// of the device: it survives deep sleep but not a reset.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the stored record. It returns ErrNoRecord if nothing was saved.
func (s *MemoryStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Unmarshal(s.data)
}

// Save encodes and stores the record.
func (s *MemoryStore) Save(r Record) error {
	data := r.Marshal()

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Reset clears the store.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
}

// Bytes returns a copy of the encoded record.
func (s *MemoryStore) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// FileStore keeps the encoded record in a file. Removing the file is a full
// reset.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the record. A missing file is ErrNoRecord.
func (s *FileStore) Load() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNoRecord
		}
		return Record{}, fmt.Errorf("failed to read state file: %w", err)
	}
	return Unmarshal(data)
}

// Save writes the record to a temporary file and renames it over the old one.
func (s *FileStore) Save(r Record) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, r.Marshal(), 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
