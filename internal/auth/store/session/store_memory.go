// Package session persists sessions started after registration.
package session

import (
	"context"
	"sync"
	"time"

	"signup/internal/auth/models"
	id "signup/pkg/domain"
	"signup/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in a map. Expired sessions read as
// missing and are dropped on access.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	now      func() time.Time
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[id.SessionID]*models.Session),
		now:      time.Now,
	}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := *session
	stored.AccessToken = ""
	s.sessions[session.ID] = &stored
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.IsExpired(s.now()) {
		delete(s.sessions, sessionID)
		return nil, sentinel.ErrNotFound
	}
	found := *session
	return &found, nil
}

// ListByUser returns the live sessions of userID.
func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []*models.Session
	for _, session := range s.sessions {
		if session.UserID == userID && !session.IsExpired(now) {
			found := *session
			out = append(out, &found)
		}
	}
	return out, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
