package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the live settings. Readers get a snapshot without locking;
// Replace serializes writers and persists before publishing.
type Store struct {
	path string
	mu   sync.Mutex
	val  atomic.Value // Settings
}

// OpenStore loads path and validates it once so the first snapshot is
// already normalized.
func OpenStore(path string) (*Store, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	normalized, vr := NormalizeAndValidate(s)
	if err := vr.Err(); err != nil {
		return nil, err
	}
	st := &Store{path: path}
	st.val.Store(normalized)
	return st, nil
}

// NewMemoryStore is a Store that never touches disk.
func NewMemoryStore(s Settings) *Store {
	st := &Store{}
	st.val.Store(s)
	return st
}

func (s *Store) Path() string { return s.path }

// Get returns a deep copy of the current settings.
func (s *Store) Get() Settings {
	return s.val.Load().(Settings).Clone()
}

// Replace validates next, saves it atomically and swaps it in. On a
// validation failure nothing changes and the Validation carries the reasons.
func (s *Store) Replace(next Settings) (Settings, Validation, error) {
	normalized, vr := NormalizeAndValidate(next)
	if !vr.OK() {
		return Settings{}, vr, vr.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := SaveAtomic(s.path, normalized); err != nil {
			return Settings{}, vr, err
		}
	}
	s.val.Store(normalized)
	return normalized.Clone(), vr, nil
}
