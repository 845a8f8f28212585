package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	cfg storeConfig

	mu     sync.RWMutex
	prefs  map[string]Preference
	closed bool
}

var _ PreferenceStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{cfg: newStoreConfig(opts), prefs: make(map[string]Preference)}
}

// Get implements PreferenceStore.
func (s *MemoryStore) Get(ctx context.Context, clientID string) (Preference, error) {
	if err := ctx.Err(); err != nil {
		return Preference{}, err
	}
	if !validClientID(clientID) {
		return Preference{}, fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Preference{}, ErrClosed
	}
	p, ok := s.prefs[clientID]
	if !ok {
		return Preference{}, ErrNotFound
	}
	return p, nil
}

// Put implements PreferenceStore.
func (s *MemoryStore) Put(ctx context.Context, p Preference) (Preference, error) {
	if err := ctx.Err(); err != nil {
		return Preference{}, err
	}
	if !validClientID(p.ClientID) {
		return Preference{}, fmt.Errorf("%w: %q", ErrInvalidClientID, p.ClientID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Preference{}, ErrClosed
	}
	p.UpdatedAt = s.cfg.now().UTC()
	s.prefs[p.ClientID] = p
	return p, nil
}

// Count returns the number of stored preferences.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prefs)
}

// Close implements PreferenceStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
