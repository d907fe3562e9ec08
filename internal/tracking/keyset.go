// Package tracking follows global input hook events and keeps the set of keys
// the user is physically holding.
package tracking

import "sync"

// KeySet is the set of currently held key codes. It is safe for concurrent use
// by one hook goroutine writing and any number of pollers reading.
type KeySet struct {
	mu      sync.RWMutex
	pressed map[uint16]struct{}
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pressed: make(map[uint16]struct{})}
}

// Down marks code as held.
func (s *KeySet) Down(code uint16) {
	s.mu.Lock()
	s.pressed[code] = struct{}{}
	s.mu.Unlock()
}

// Up marks code as released.
func (s *KeySet) Up(code uint16) {
	s.mu.Lock()
	delete(s.pressed, code)
	s.mu.Unlock()
}

// IsPressed reports whether code is held.
func (s *KeySet) IsPressed(code uint16) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pressed[code]
	return ok
}

// Len returns the number of held keys.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pressed)
}

// Clear releases every key. Used when the hook stops, since releases that
// happen afterwards are never observed.
func (s *KeySet) Clear() {
	s.mu.Lock()
	clear(s.pressed)
	s.mu.Unlock()
}
