package qbank

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openqbank/qbexport/internal/errs"
)

// Session holds the questions of one uploaded XML document so later export
// requests can reference them by id.
type Session struct {
	ID        string         `json:"id"`
	Questions []Question     `json:"questions"`
	Warnings  []ParseWarning `json:"warnings,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

type SessionStore interface {
	Put(questions []Question, warnings []ParseWarning) (Session, error)
	Get(id string) (Session, error)
	// Select returns the named questions of a session in the order given.
	Select(sessionID string, questionIDs []string) ([]Question, error)
}

type memorySessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessionStore() SessionStore {
	return &memorySessions{sessions: map[string]Session{}}
}

func (m *memorySessions) Put(questions []Question, warnings []ParseWarning) (Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		Questions: questions,
		Warnings:  warnings,
		CreatedAt: time.Now().Unix(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memorySessions) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, errs.ErrNotFound)
	}
	return s, nil
}

func (m *memorySessions) Select(sessionID string, questionIDs []string) ([]Question, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Question, len(s.Questions))
	for _, q := range s.Questions {
		byID[q.ID] = q
	}
	out := make([]Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", id, errs.ErrNotFound)
		}
		out = append(out, q)
	}
	return out, nil
}
