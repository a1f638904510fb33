package session

import (
	"sync"
	"time"
)

// Manager is a thread-safe, in-memory registry of active sessions keyed
// by respondent identifier. It plays the same role for survey sessions
// that MemoryStore plays for claim/XR metadata in the teacher package
// this one is modeled on: a mutex-guarded map with no durability of its
// own, fronted by whatever eviction or persistence policy the caller
// wants layered on top.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	state      *State
	lastAccess time.Time
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*entry)}
}

// GetOrCreate returns the existing session for id, creating a new empty
// one if none exists yet. It always touches the entry's last-access
// time.
func (m *Manager) GetOrCreate(id string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{state: New()}
		m.sessions[id] = e
	}
	e.lastAccess = time.Now()
	return e.state
}

// Get returns the session for id without creating one.
func (m *Manager) Get(id string) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.state, true
}

// Delete removes a session, typically after it has been persisted.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of sessions currently held in memory.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle removes every session whose last access is older than
// maxIdle relative to now, returning the identifiers removed. Callers
// that need the evicted state to persist it first should snapshot via
// Get before relying on eviction to reclaim memory (§5, resource model:
// idle sessions are reclaimed on a timer rather than held forever).
func (m *Manager) EvictIdle(now time.Time, maxIdle time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []string
	for id, e := range m.sessions {
		if now.Sub(e.lastAccess) >= maxIdle {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
