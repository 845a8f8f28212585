// Package preference holds the view preferences a client carries between
// sessions. The value is passed explicitly to renderers rather than read
// from ambient state.
package preference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/devinfo/internal/adapters/repository"
	"github.com/okian/devinfo/pkg/metrics"
)

// Theme names used by renderers.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Session is one client's preferences backed by a store.
type Session struct {
	store    repository.PreferenceStore
	clientID string

	mu       sync.RWMutex
	darkMode bool
}

// Load reads clientID's preferences. A client with nothing stored gets the
// light theme.
func Load(ctx context.Context, store repository.PreferenceStore, clientID string) (*Session, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	p, err := store.Get(ctx, clientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		metrics.RecordPreferenceError()
		return nil, fmt.Errorf("load preferences for %s: %w", clientID, err)
	}
	return &Session{store: store, clientID: clientID, darkMode: p.DarkMode}, nil
}

// ClientID returns the client the session belongs to.
func (s *Session) ClientID() string { return s.clientID }

// DarkMode reports the current preference.
func (s *Session) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode
}

// Theme returns ThemeDark or ThemeLight.
func (s *Session) Theme() string {
	if s.DarkMode() {
		return ThemeDark
	}
	return ThemeLight
}

// SetDarkMode persists v and, once stored, makes it the current value.
func (s *Session) SetDarkMode(ctx context.Context, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.Put(ctx, repository.Preference{ClientID: s.clientID, DarkMode: v}); err != nil {
		metrics.RecordPreferenceError()
		return fmt.Errorf("save preferences for %s: %w", s.clientID, err)
	}
	metrics.RecordPreferenceWrite()
	s.darkMode = v
	return nil
}

// Toggle flips the preference and returns the new value.
func (s *Session) Toggle(ctx context.Context) (bool, error) {
	next := !s.DarkMode()
	if err := s.SetDarkMode(ctx, next); err != nil {
		return !next, err
	}
	return next, nil
}
