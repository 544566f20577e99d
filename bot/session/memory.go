package session

import "sync"

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]Session),
	}
}

func copySession(s Session) Session {
	out := Session{State: s.State}
	if s.Data != nil {
		out.Data = make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Get returns a copy of the session for a subject if one exists.
func (m *memoryStore) Get(id int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{State: StateIdle}, false
	}
	return copySession(s), true
}

// Set overwrites the session for a subject.
func (m *memoryStore) Set(id int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = copySession(s)
}

// Clear removes the session for a subject.
func (m *memoryStore) Clear(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
}

// InProgress reports whether the subject has a non-idle session.
func (m *memoryStore) InProgress(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return ok && s.State != StateIdle
}
