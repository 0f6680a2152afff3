// Package session holds the in-progress interviews, one per user.
package session

import (
	"sync"

	"github.com/korjavin/intakebot/models"
)

// Registry owns every live interview. All methods are atomic.
type Registry interface {
	// TryCreate inserts s only if its user has no session and reports whether it did
	TryCreate(s models.Session) bool
	// Get returns a copy of the user's session
	Get(userID string) (models.Session, bool)
	// Advance applies mutate to the stored session. It is a no-op and returns false
	// when the user has none.
	Advance(userID string, mutate func(*models.Session)) bool
	Remove(userID string)
	Len() int
}

// Memory is a process-local Registry. Sessions do not survive a restart.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*models.Session)}
}

func (m *Memory) TryCreate(s models.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.UserID]; exists {
		return false
	}
	c := s.Clone()
	m.sessions[s.UserID] = &c
	return true
}

func (m *Memory) Get(userID string) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return models.Session{}, false
	}
	return s.Clone(), true
}

func (m *Memory) Advance(userID string, mutate func(*models.Session)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return false
	}
	mutate(s)
	return true
}

func (m *Memory) Remove(userID string) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
