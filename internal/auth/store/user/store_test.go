package user

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"quill/internal/auth/models"
	"quill/internal/platform/config"
	"quill/internal/platform/database"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, userID id.UserID) (bool, error)
}

// UserStoreSuite runs the same contract against the memory and SQLite stores.
type UserStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) userStore
	store    userStore
}

func TestInMemoryUserStore(t *testing.T) {
	suite.Run(t, &UserStoreSuite{newStore: func(*testing.T) userStore { return New() }})
}

func TestSQLiteUserStore(t *testing.T) {
	suite.Run(t, &UserStoreSuite{newStore: func(t *testing.T) userStore {
		db, err := database.Open(context.Background(), config.Database{URL: "sqlite://" + filepath.Join(t.TempDir(), "users.db")})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		if _, err := db.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return NewSQL(db)
	}})
}

func (s *UserStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func newUser(email string) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:           id.NewUserID(),
		Name:         "Ana",
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Role:         id.RoleAuthor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *UserStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	u := newUser("ana@example.com")
	s.Require().NoError(s.store.Create(ctx, u))

	byID, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, byID.Email)
	s.Equal(id.RoleAuthor, byID.Role)
	s.True(u.CreatedAt.Equal(byID.CreatedAt))

	byEmail, err := s.store.FindByEmail(ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)

	ok, err := s.store.Exists(ctx, u.ID)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *UserStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newUser("dup@example.com")))
	err := s.store.Create(ctx, newUser("dup@example.com"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *UserStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByEmail(ctx, "ghost@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
	ok, err := s.store.Exists(ctx, id.NewUserID())
	s.Require().NoError(err)
	s.False(ok)
}
