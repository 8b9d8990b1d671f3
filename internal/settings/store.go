// Package settings provides a typed key/value store keyed by
// (namespace, key), write-through persisted to a single JSON file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// Store holds settings in memory and persists every mutation immediately.
// A persistence failure is returned to the caller but the in-memory value
// is kept, so the toggle still takes effect for the current session.
type Store struct {
	mu      sync.RWMutex
	path    string
	values  map[string]map[string]any // namespace -> key -> bool|string
	loadErr error
}

// Open loads the settings file at path, creating an empty store if the
// file does not exist yet. An unreadable or corrupt file does not fail
// the open: the store starts from defaults, the error is kept for
// LoadError, and the next mutation rewrites the file.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]map[string]any),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		s.loadErr = fmt.Errorf("failed to read settings file: %w", err)
		return s, nil
	}
	if err := sonic.Unmarshal(data, &s.values); err != nil {
		s.loadErr = fmt.Errorf("failed to parse settings file: %w", err)
		s.values = make(map[string]map[string]any)
	}
	return s, nil
}

// LoadError reports the error, if any, from reading or parsing the
// settings file at Open. A non-nil result means the store started from
// defaults instead of persisted values.
func (s *Store) LoadError() error {
	return s.loadErr
}

// GetBool returns the boolean value for (namespace, key), or def when the
// key is absent or holds a non-boolean.
func (s *Store) GetBool(namespace, key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ns, ok := s.values[namespace]; ok {
		if v, ok := ns[key].(bool); ok {
			return v
		}
	}
	return def
}

// GetString returns the string value for (namespace, key), or def.
func (s *Store) GetString(namespace, key string, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ns, ok := s.values[namespace]; ok {
		if v, ok := ns[key].(string); ok {
			return v
		}
	}
	return def
}

// SetBool stores a boolean and persists the store.
func (s *Store) SetBool(namespace, key string, value bool) error {
	return s.set(namespace, key, value)
}

// SetString stores a string and persists the store.
func (s *Store) SetString(namespace, key, value string) error {
	return s.set(namespace, key, value)
}

func (s *Store) set(namespace, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.values[namespace]
	if !ok {
		ns = make(map[string]any)
		s.values[namespace] = ns
	}
	ns[key] = value

	return s.persistLocked()
}

// Delete removes a key and persists the store. Deleting an absent key is
// a no-op.
func (s *Store) Delete(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.values[namespace]
	if !ok {
		return nil
	}
	if _, ok := ns[key]; !ok {
		return nil
	}
	delete(ns, key)

	return s.persistLocked()
}

// persistLocked writes the store atomically: temp file then rename.
func (s *Store) persistLocked() error {
	data, err := sonic.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
