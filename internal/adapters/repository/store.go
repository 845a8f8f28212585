// Package repository defines the preference store interface, its errors and
// the memory and SQLite implementations.
package repository

import (
	"context"
	"time"
)

// Preference is the persisted view preference of one client.
type Preference struct {
	ClientID  string
	DarkMode  bool
	UpdatedAt time.Time
}

// PreferenceStore provides read/write access to client preferences.
type PreferenceStore interface {
	// Get returns the stored preference for clientID.
	// Returns ErrNotFound if nothing was stored yet.
	Get(ctx context.Context, clientID string) (Preference, error)

	// Put stores p, replacing any previous value for p.ClientID. UpdatedAt is
	// set by the store.
	Put(ctx context.Context, p Preference) (Preference, error)

	// Close releases the store. Further calls return ErrClosed.
	Close() error
}

func validClientID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
