package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"quill/internal/auth/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// FindActive returns the session only if id, owner and token hash all match
// and it has not expired at now.
func (s *InMemorySessionStore) FindActive(_ context.Context, sessionID id.SessionID, userID id.UserID, tokenHash string, now time.Time) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID || sess.RefreshTokenHash != tokenHash {
		return nil, sentinel.ErrNotFound
	}
	if sess.IsExpired(now) {
		return nil, sentinel.ErrExpired
	}
	cp := *sess
	return &cp, nil
}

// ListByUser returns live sessions, newest first.
func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID, now time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && !sess.IsExpired(now) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Session) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// DeleteByTokenHash removes the session holding tokenHash and reports whether one existed.
func (s *InMemorySessionStore) DeleteByTokenHash(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, sess := range s.sessions {
		if sess.RefreshTokenHash == tokenHash {
			delete(s.sessions, sid)
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sid, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, sid)
			n++
		}
	}
	return n, nil
}
