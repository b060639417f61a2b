package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common store errors
var (
	// ErrNotFound is returned when a session is absent from the store
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID is returned for an empty session id
	ErrInvalidID = errors.New("invalid session id")
)

// UpdateFunc mutates a session in place. Returning an error aborts the
// update and leaves the stored session unchanged.
type UpdateFunc func(s *Session) error

// Store keeps sessions keyed by id. Every mutation of one session is atomic
// with respect to other mutations of the same session.
type Store interface {
	// Get returns a copy of the session
	Get(ctx context.Context, id string) (*Session, error)

	// Update applies fn to the session and returns a copy of the result.
	// With create set, an absent session is created empty first.
	Update(ctx context.Context, id string, create bool, fn UpdateFunc) (*Session, error)

	// Delete removes the session and returns its last state
	Delete(ctx context.Context, id string) (*Session, error)

	// Sweep removes and returns every active session whose last activity
	// is before cutoff. Finalizing sessions are never swept.
	Sweep(ctx context.Context, cutoff time.Time) ([]*Session, error)

	// List returns copies of all sessions
	List(ctx context.Context) ([]*Session, error)

	Close() error
}

func expired(s *Session, cutoff time.Time) bool {
	return s.State == StateActive && s.LastActivityAt.Before(cutoff)
}

// MemoryStore is an in-process Store. The map lock is only held to find or
// insert entries; each session has its own lock so unrelated sessions never
// wait on each other.
type MemoryStore struct {
	entries map[string]*memoryEntry
	mu      sync.RWMutex
}

type memoryEntry struct {
	session *Session
	removed bool
	mu      sync.Mutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// Get returns a copy of the session
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return nil, ErrNotFound
	}
	return entry.session.Clone(), nil
}

// Update applies fn under the session lock
func (m *MemoryStore) Update(ctx context.Context, id string, create bool, fn UpdateFunc) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	for {
		entry, err := m.lookup(id, create)
		if err != nil {
			return nil, err
		}

		entry.mu.Lock()
		if entry.removed {
			// deleted between lookup and lock
			entry.mu.Unlock()
			if !create {
				return nil, ErrNotFound
			}
			continue
		}

		working := entry.session.Clone()
		if err := fn(working); err != nil {
			entry.mu.Unlock()
			return nil, err
		}
		entry.session = working
		out := working.Clone()
		entry.mu.Unlock()
		return out, nil
	}
}

func (m *MemoryStore) lookup(id string, create bool) (*memoryEntry, error) {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if !create {
		return nil, ErrNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[id]; ok {
		return entry, nil
	}
	entry = &memoryEntry{session: newSession(id)}
	m.entries[id] = entry
	return entry, nil
}

// Delete removes the session and returns its last state
func (m *MemoryStore) Delete(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	entry, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.removed = true
	return entry.session.Clone(), nil
}

// Sweep removes active sessions idle since before cutoff
func (m *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var swept []*Session
	for id, entry := range m.entries {
		entry.mu.Lock()
		if expired(entry.session, cutoff) {
			entry.removed = true
			delete(m.entries, id)
			swept = append(swept, entry.session.Clone())
		}
		entry.mu.Unlock()
	}
	return swept, nil
}

// List returns copies of all sessions
func (m *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	out := make([]*Session, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if !entry.removed {
			out = append(out, entry.session.Clone())
		}
		entry.mu.Unlock()
	}
	return out, nil
}

// Close is a no-op for the memory store
func (m *MemoryStore) Close() error {
	return nil
}
