package telegram

import (
	"sync"
)

// sessionState identifies where a user is in a multi-step configuration flow.
type sessionState int

const (
	stateIdle sessionState = iota
	stateAddingCollectionName
	stateAddingStickerpackName
	stateAddingLaunchPrice
	stateConfirmingItem
)

// session holds the temporary data collected during an /add flow.
type session struct {
	state           sessionState
	collectionName  string
	stickerpackName string
	launchPrice     float64
}

// sessionManager tracks per-user interaction state. Sessions are ephemeral
// and reset on /cancel or flow completion; they are never persisted.
type sessionManager struct {
	sessions map[int64]*session
	mu       sync.Mutex
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[int64]*session)}
}

func (m *sessionManager) get(userID int64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[userID]
	if !exists {
		s = &session{}
		m.sessions[userID] = s
	}
	return s
}

func (m *sessionManager) reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *sessionManager) inFlow(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[userID]
	return exists && s.state != stateIdle
}
