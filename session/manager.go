// Package session keeps bounded per-session conversation history. One
// exchange is a user message plus the assistant's answer; a session
// retains at most maxHistory exchanges, dropping the oldest first.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fabfab/course-rag/llm"
)

// Manager is safe for concurrent use. All mutation happens under one
// mutex, so an exchange is appended atomically even when two queries
// race on the same session.
type Manager struct {
	mu         sync.RWMutex
	maxHistory int
	sessions   map[string][]llm.Message
}

func NewManager(maxHistory int) *Manager {
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   map[string][]llm.Message{},
	}
}

// Create registers a new session with empty history and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = []llm.Message{}
	return id
}

// History returns a copy of the session's entries. The second return
// value distinguishes an unknown session from a known one with empty
// history.
func (m *Manager) History(id string) ([]llm.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return append([]llm.Message(nil), history...), true
}

// AddExchange appends one user/assistant pair and trims the oldest
// whole pairs beyond the history bound. An unknown id starts a new
// session, so callers that received an id from elsewhere can record
// into it directly.
func (m *Manager) AddExchange(id, userText, assistantText string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[id],
		llm.Message{Role: llm.RoleUser, Content: userText},
		llm.Message{Role: llm.RoleAssistant, Content: assistantText},
	)

	if limit := 2 * m.maxHistory; len(history) > limit {
		// Trim whole exchanges only, never half a pair.
		history = history[len(history)-limit:]
	}

	m.sessions[id] = history
}

// Clear drops every session. There is no per-session expiry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = map[string][]llm.Message{}
}
