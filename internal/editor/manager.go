package editor

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aliskhannn/nano-editor/internal/history"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	history  history.Options
	clock    model.Clock
}

// NewManager creates a Manager whose sessions use the given history options.
func NewManager(opts history.Options, clock model.Clock) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		history:  opts,
		clock:    clock,
	}
}

// Create starts an empty session for owner.
func (m *Manager) Create(owner string) *Session {
	s := NewSession(owner, m.history, m.clock)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	return s
}

// Get returns a session by ID.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete drops a session.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List returns the sessions of owner, oldest first. An empty owner lists all.
func (m *Manager) List(owner string) []State {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if owner == "" || s.Owner() == owner {
			sessions = append(sessions, s)
		}
	}
	m.mu.RUnlock()

	out := make([]State, len(sessions))
	for i, s := range sessions {
		out[i] = s.State()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
