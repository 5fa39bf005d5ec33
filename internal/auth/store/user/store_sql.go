package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quill/internal/auth/models"
	"quill/internal/platform/database"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

// SQLStore persists users in the users table of either dialect.
type SQLStore struct {
	db *database.DB
}

func NewSQL(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func (s *SQLStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role),
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	return scanUser(row)
}

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	return scanUser(row)
}

func (s *SQLStore) Exists(ctx context.Context, userID id.UserID) (bool, error) {
	var n int
	err := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = id.Role(role)
	return &u, nil
}
