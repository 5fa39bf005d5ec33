package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"quill/internal/auth/models"
	userstore "quill/internal/auth/store/user"
	"quill/internal/platform/config"
	"quill/internal/platform/database"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindActive(ctx context.Context, sessionID id.SessionID, userID id.UserID, tokenHash string, now time.Time) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionStoreSuite checks lookup, expiry and deletion for both stores.
type SessionStoreSuite struct {
	suite.Suite
	setup  func(t *testing.T) (sessionStore, func(id.UserID))
	store  sessionStore
	addUsr func(id.UserID)
	now    time.Time
}

func TestInMemorySessionStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{setup: func(*testing.T) (sessionStore, func(id.UserID)) {
		return New(), func(id.UserID) {}
	}})
}

func TestSQLiteSessionStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{setup: func(t *testing.T) (sessionStore, func(id.UserID)) {
		ctx := context.Background()
		db, err := database.Open(ctx, config.Database{URL: "sqlite://" + filepath.Join(t.TempDir(), "sessions.db")})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		if _, err := db.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		users := userstore.NewSQL(db)
		return NewSQL(db), func(userID id.UserID) {
			now := time.Now().UTC()
			err := users.Create(ctx, &models.User{
				ID: userID, Name: "U", Email: userID.String() + "@example.com",
				PasswordHash: "h", Role: id.RoleViewer, CreatedAt: now, UpdatedAt: now,
			})
			if err != nil {
				t.Fatalf("seed user: %v", err)
			}
		}
	}})
}

func (s *SessionStoreSuite) SetupTest() {
	s.store, s.addUsr = s.setup(s.T())
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *SessionStoreSuite) newSession(userID id.UserID, hash string, created time.Time, ttl time.Duration) *models.Session {
	return &models.Session{
		ID:               id.NewSessionID(),
		UserID:           userID,
		RefreshTokenHash: hash,
		UserAgent:        "curl/8.0",
		DeviceName:       "curl on Unknown OS",
		ClientIP:         "10.0.0.1",
		CreatedAt:        created,
		ExpiresAt:        created.Add(ttl),
	}
}

func (s *SessionStoreSuite) TestFindActive() {
	ctx := context.Background()
	userID := id.NewUserID()
	s.addUsr(userID)
	sess := s.newSession(userID, "hash-1", s.now, time.Hour)
	s.Require().NoError(s.store.Create(ctx, sess))

	s.Run("matching id, user and hash", func() {
		found, err := s.store.FindActive(ctx, sess.ID, userID, "hash-1", s.now)
		s.Require().NoError(err)
		s.Equal(sess.DeviceName, found.DeviceName)
	})

	s.Run("wrong hash is not found", func() {
		_, err := s.store.FindActive(ctx, sess.ID, userID, "other", s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("wrong user is not found", func() {
		_, err := s.store.FindActive(ctx, sess.ID, id.NewUserID(), "hash-1", s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("expired session", func() {
		_, err := s.store.FindActive(ctx, sess.ID, userID, "hash-1", s.now.Add(2*time.Hour))
		s.ErrorIs(err, sentinel.ErrExpired)
	})
}

func (s *SessionStoreSuite) TestListDeleteAndPurge() {
	ctx := context.Background()
	userID := id.NewUserID()
	s.addUsr(userID)
	older := s.newSession(userID, "h-old", s.now.Add(-time.Hour), 3*time.Hour)
	newer := s.newSession(userID, "h-new", s.now, 3*time.Hour)
	expired := s.newSession(userID, "h-exp", s.now.Add(-2*time.Hour), time.Hour)
	for _, sess := range []*models.Session{older, newer, expired} {
		s.Require().NoError(s.store.Create(ctx, sess))
	}

	live, err := s.store.ListByUser(ctx, userID, s.now)
	s.Require().NoError(err)
	s.Require().Len(live, 2)
	s.Equal(newer.ID, live[0].ID)
	s.Equal(older.ID, live[1].ID)

	deleted, err := s.store.DeleteByTokenHash(ctx, "h-old")
	s.Require().NoError(err)
	s.True(deleted)
	deleted, err = s.store.DeleteByTokenHash(ctx, "h-old")
	s.Require().NoError(err)
	s.False(deleted)

	purged, err := s.store.DeleteExpired(ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, purged)

	live, err = s.store.ListByUser(ctx, userID, s.now)
	s.Require().NoError(err)
	s.Len(live, 1)
}
