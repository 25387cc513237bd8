// Package session keeps per-visitor flags, such as whether the intro has
// already played, for the lifetime of a browsing session.
package session

import (
	"context"
	"sync"
	"time"
)

// IntroSeen is set once the hero intro reached its completed state.
const IntroSeen = "intro-seen"

// Store persists boolean flags scoped to a session ID. A flag that was never
// set reads as false.
type Store interface {
	GetFlag(ctx context.Context, sessionID, name string) (bool, error)
	SetFlag(ctx context.Context, sessionID, name string) error
	// Purge drops flags set before the cutoff and reports how many went.
	Purge(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

type flagKey struct {
	session string
	name    string
}

// MemoryStore is a process-local Store. Flags are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[flagKey]time.Time
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[flagKey]time.Time), now: time.Now}
}

func (m *MemoryStore) GetFlag(_ context.Context, sessionID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.flags[flagKey{sessionID, name}]
	return ok, nil
}

func (m *MemoryStore) SetFlag(_ context.Context, sessionID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flagKey{sessionID, name}] = m.now()
	return nil
}

func (m *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, at := range m.flags {
		if at.Before(before) {
			delete(m.flags, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
