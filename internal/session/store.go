package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound means the session is missing or expired.
var ErrNotFound = errors.New("session not found")

// Session is the server-held state behind one login cookie.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"loginTime"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the abstraction over session backends. The memory store
// loses everything on restart; the Redis store survives.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Memory is the default in-process store.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

// Create registers a session.
func (m *Memory) Create(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get returns a live session; expired entries are removed lazily.
func (m *Memory) Get(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if time.Now().After(s.ExpiresAt) {
		delete(m.sessions, id)
		return Session{}, ErrNotFound
	}
	return s, nil
}

// Delete destroys a session; deleting a missing session is not an error.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
