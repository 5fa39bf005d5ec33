package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quill/internal/auth/models"
	"quill/internal/platform/database"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

type SQLStore struct {
	db *database.DB
}

func NewSQL(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, device_name, client_ip, created_at, expires_at`

func (s *SQLStore) Create(ctx context.Context, sess *models.Session) error {
	_, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		sess.ID, sess.UserID, sess.RefreshTokenHash, sess.UserAgent, sess.DeviceName, sess.ClientIP,
		sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLStore) FindActive(ctx context.Context, sessionID id.SessionID, userID id.UserID, tokenHash string, now time.Time) (*models.Session, error) {
	row := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE id = ? AND user_id = ? AND refresh_token_hash = ?`),
		sessionID, userID, tokenHash,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if sess.IsExpired(now) {
		return nil, sentinel.ErrExpired
	}
	return sess, nil
}

func (s *SQLStore) ListByUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.Session, error) {
	rows, err := s.db.Conn(ctx).QueryContext(ctx, s.db.Rebind(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND expires_at > ?
		ORDER BY created_at DESC`),
		userID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	res, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE refresh_token_hash = ?`), tokenHash)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &sess.UserAgent, &sess.DeviceName,
		&sess.ClientIP, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &sess, nil
}
