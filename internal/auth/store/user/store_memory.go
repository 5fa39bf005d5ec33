package user

import (
	"context"
	"sync"

	"quill/internal/auth/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in process, indexed by id and email.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		byID:    make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Create inserts user; a taken email yields sentinel.ErrConflict.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byID[user.ID]; ok {
		return sentinel.ErrConflict
	}
	u := *user
	s.byID[user.ID] = &u
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.byID[userID]
	return &out, nil
}

// Exists reports whether any user holds id. Used by blog stores to check authors.
func (s *InMemoryUserStore) Exists(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[userID]
	return ok, nil
}
