package controller

import (
	"sync"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
)

// ToggleStore holds the automation enable flags. Unknown toggles read as off.
type ToggleStore struct {
	mu    sync.RWMutex
	flags map[entities.Toggle]bool
}

// NewToggleStore seeds the store with startup defaults.
func NewToggleStore(defaults map[entities.Toggle]bool) *ToggleStore {
	s := &ToggleStore{flags: make(map[entities.Toggle]bool, len(entities.Toggles))}
	for _, t := range entities.Toggles {
		s.flags[t] = defaults[t]
	}
	return s
}

func (s *ToggleStore) Enabled(t entities.Toggle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[t]
}

// Set stores the flag and reports whether the value changed.
func (s *ToggleStore) Set(t entities.Toggle, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.flags[t]
	s.flags[t] = on
	return prev != on
}

// Snapshot returns a copy of all flags.
func (s *ToggleStore) Snapshot() map[entities.Toggle]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entities.Toggle]bool, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}
