package session

import (
	"context"
	"sync"
	"time"
)

// entry pairs a session with its own mutex so mutations to one identity
// serialize without blocking other identities.
type entry struct {
	mu   sync.Mutex
	sess *Session
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// GetOrCreate returns a snapshot of the session for the pair, creating
// it on first call.
func (m *MemoryStore) GetOrCreate(_ context.Context, channel, identity string) (*Session, error) {
	e, err := m.entryFor(channel, identity, true)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.clone(), nil
}

// Get returns a snapshot of an existing session.
func (m *MemoryStore) Get(_ context.Context, channel, identity string) (*Session, error) {
	e, err := m.entryFor(channel, identity, false)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.clone(), nil
}

// Touch updates the session's last-activity timestamp.
func (m *MemoryStore) Touch(_ context.Context, channel, identity string) error {
	return m.mutate(channel, identity, func(s *Session) {})
}

// SetStep updates the session's step label.
func (m *MemoryStore) SetStep(_ context.Context, channel, identity, step string) error {
	return m.mutate(channel, identity, func(s *Session) {
		s.Step = step
	})
}

// SetData sets one collected key/value fact.
func (m *MemoryStore) SetData(_ context.Context, channel, identity, key, value string) error {
	return m.mutate(channel, identity, func(s *Session) {
		s.Data[key] = value
	})
}

// Append adds a turn to the session transcript.
func (m *MemoryStore) Append(_ context.Context, channel, identity string, turn Turn) error {
	return m.mutate(channel, identity, func(s *Session) {
		s.Transcript = append(s.Transcript, turn)
	})
}

// Sweep removes sessions idle longer than maxIdle.
func (m *MemoryStore) Sweep(_ context.Context, maxIdle time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	cutoff := m.now().Add(-maxIdle)
	evicted := 0
	for key, e := range m.entries {
		e.mu.Lock()
		idle := e.sess.LastActive.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(m.entries, key)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close releases the store. Subsequent operations fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = make(map[string]*entry)
	return nil
}

// mutate applies fn to the session under its per-identity lock and
// bumps LastActive.
func (m *MemoryStore) mutate(channel, identity string, fn func(*Session)) error {
	e, err := m.entryFor(channel, identity, false)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	e.sess.LastActive = m.now()
	return nil
}

func (m *MemoryStore) entryFor(channel, identity string, create bool) (*entry, error) {
	key := Key(channel, identity)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}
	if !create {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	// Re-check under the write lock; another goroutine may have won.
	if e, ok := m.entries[key]; ok {
		return e, nil
	}
	e = &entry{
		sess: &Session{
			Channel:    channel,
			Identity:   identity,
			Step:       StepStart,
			Data:       make(map[string]string),
			LastActive: m.now(),
		},
	}
	m.entries[key] = e
	return e, nil
}
