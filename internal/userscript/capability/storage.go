package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// FileStorage persists each script's values as one JSON document under
// the storage directory. Loaded lazily, written through on every
// mutation.
type FileStorage struct {
	dir string

	mu     sync.Mutex
	loaded map[string]map[string]any
}

// NewFileStorage creates a store rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir, loaded: make(map[string]map[string]any)}
}

func (s *FileStorage) Get(script, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.valuesLocked(script)
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStorage) Set(script, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.valuesLocked(script)
	if err != nil {
		return err
	}
	values[key] = value
	return s.persistLocked(script, values)
}

func (s *FileStorage) Delete(script, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.valuesLocked(script)
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.persistLocked(script, values)
}

func (s *FileStorage) List(script string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.valuesLocked(script)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// valuesLocked returns the cached document for script, reading it from
// disk on first access. A missing file is an empty document.
func (s *FileStorage) valuesLocked(script string) (map[string]any, error) {
	if values, ok := s.loaded[script]; ok {
		return values, nil
	}

	values := make(map[string]any)
	data, err := os.ReadFile(s.path(script))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read script storage: %w", err)
	default:
		if err := sonic.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("corrupt script storage: %w", err)
		}
	}
	s.loaded[script] = values
	return values, nil
}

func (s *FileStorage) persistLocked(script string, values map[string]any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}
	data, err := sonic.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode script storage: %w", err)
	}
	path := s.path(script)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write script storage: %w", err)
	}
	return os.Rename(tmp, path)
}

// path maps a script name to its storage file. Separators in the name
// are flattened so the document always lands inside the storage dir.
func (s *FileStorage) path(script string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.':
			return '_'
		}
		return r
	}, script)
	return filepath.Join(s.dir, safe+".json")
}
