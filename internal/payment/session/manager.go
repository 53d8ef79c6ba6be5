package session

import (
	"sync"
)

// Manager keeps at most one live session per booking.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Begin creates a fresh session for the booking. A previous session that has not
// finished is cancelled first, so one booking never has two pollers.
func (m *Manager) Begin(bookingID, owner string) *Session {
	s := New(bookingID, owner, m.deps)

	m.mu.Lock()
	prev := m.sessions[bookingID]
	m.sessions[bookingID] = s
	m.mu.Unlock()

	if prev != nil && prev.Cancel() {
		m.deps.Logger.Info("superseded payment session cancelled",
			"booking_id", bookingID,
			"session_id", prev.ID(),
			"replaced_by", s.ID(),
		)
	}
	return s
}

// Get returns the booking's current session.
func (m *Manager) Get(bookingID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Release cancels the booking's session if it is still running and forgets it.
func (m *Manager) Release(bookingID string) (Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[bookingID]
	delete(m.sessions, bookingID)
	m.mu.Unlock()

	if !ok {
		return Snapshot{}, ErrNotFound
	}
	s.Cancel()
	return s.Snapshot(), nil
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close cancels every session. Used on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}
