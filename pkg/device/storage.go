package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrInjected is returned by MemStorage operations set up to fail.
var ErrInjected = errors.New("injected storage failure")

// DirStorage stores files in a directory.
type DirStorage struct {
	dir string
}

// NewDirStorage creates storage rooted at dir.
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{dir: dir}
}

// Dir returns the root directory.
func (s *DirStorage) Dir() string {
	return s.dir
}

// Create creates or truncates name.
func (s *DirStorage) Create(name string) (File, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f, nil
}

// Append opens name for appending, creating it if needed.
func (s *DirStorage) Append(name string) (File, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// MemStorage keeps files in memory. Failures can be injected per operation.
type MemStorage struct {
	mu    sync.Mutex
	files map[string][]byte

	// FailCreate makes Create and Append fail.
	FailCreate bool
	// FailWriteAfter makes writes fail once a file holds this many bytes.
	// Zero disables it.
	FailWriteAfter int
	// FailSeek makes Seek fail.
	FailSeek bool
	// FailClose makes Close fail.
	FailClose bool
}

// NewMemStorage creates empty storage.
func NewMemStorage() *MemStorage {
	return &MemStorage{files: make(map[string][]byte)}
}

// Create creates or truncates name.
func (s *MemStorage) Create(name string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate {
		return nil, fmt.Errorf("failed to create %s: %w", name, ErrInjected)
	}
	s.files[name] = nil
	return &memFile{storage: s, name: name}, nil
}

// Append opens name for appending, creating it if needed.
func (s *MemStorage) Append(name string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate {
		return nil, fmt.Errorf("failed to open %s: %w", name, ErrInjected)
	}
	data := s.files[name]
	s.files[name] = data
	return &memFile{storage: s, name: name, pos: int64(len(data)), append: true}, nil
}

// File returns a copy of the contents of name.
func (s *MemStorage) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[name]
	return append([]byte(nil), data...), ok
}

// Names returns the sorted file names.
func (s *MemStorage) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type memFile struct {
	storage *MemStorage
	name    string
	pos     int64
	append  bool
	closed  bool
}

func (f *memFile) Write(p []byte) (int, error) {
	s := f.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return 0, os.ErrClosed
	}

	data := s.files[f.name]
	if f.append {
		f.pos = int64(len(data))
	}
	if s.FailWriteAfter > 0 && int(f.pos)+len(p) > s.FailWriteAfter {
		return 0, fmt.Errorf("failed to write %s: %w", f.name, ErrInjected)
	}

	end := int(f.pos) + len(p)
	if end > len(data) {
		data = append(data, make([]byte, end-len(data))...)
	}
	copy(data[f.pos:], p)
	s.files[f.name] = data
	f.pos = int64(end)
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	s := f.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return 0, os.ErrClosed
	}
	if s.FailSeek {
		return 0, fmt.Errorf("failed to seek %s: %w", f.name, ErrInjected)
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = int64(len(s.files[f.name])) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position %d", pos)
	}
	f.pos = pos
	return pos, nil
}

func (f *memFile) Close() error {
	s := f.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	if s.FailClose {
		return fmt.Errorf("failed to close %s: %w", f.name, ErrInjected)
	}
	return nil
}
