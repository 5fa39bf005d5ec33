package service

import (
	"context"
	"errors"

	"quill/internal/auth/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/audit"
	"quill/pkg/platform/sentinel"
)

var errSessionInvalid = dErrors.New(dErrors.CodeUnauthorized, "session is invalid or expired")

// Refresh issues a new access token for the session behind refreshToken.
// The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ *models.RefreshResult, err error) {
	ctx, span := s.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "refresh token is required")
	}
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.authFailure(ctx, "invalid_refresh_token")
		return nil, err
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, errSessionInvalid
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, errSessionInvalid
	}

	if _, err := s.sessions.FindActive(ctx, sessionID, userID, hashToken(refreshToken), now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			s.authFailure(ctx, "session_not_found", "session_id", sessionID.String())
			return nil, errSessionInvalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errSessionInvalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	accessToken, accessExp, err := s.tokens.GenerateAccessToken(subjectFor(user, sessionID), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	s.logAudit(ctx, audit.EventTokenRefreshed, user.ID, "session_id", sessionID.String())

	return &models.RefreshResult{
		User:            user,
		AccessToken:     accessToken,
		AccessExpiresAt: accessExp,
	}, nil
}

// Logout deletes the session holding refreshToken. It never fails the caller:
// an unknown or malformed token simply has nothing to revoke.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	deleted, err := s.sessions.DeleteByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete session on logout", "error", err)
		return
	}
	if !deleted {
		return
	}
	var userID id.UserID
	if claims, err := s.tokens.ValidateRefreshToken(refreshToken); err == nil {
		userID, _ = id.ParseUserID(claims.UserID)
	}
	s.logAudit(ctx, audit.EventSessionRevoked, userID, "reason", "logout")
}

// Me reloads the caller from the store so role and name changes show up
// before the access token expires.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "user no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// ListSessions returns the caller's live sessions, flagging the current one.
func (s *Service) ListSessions(ctx context.Context, userID id.UserID, current id.SessionID) ([]*models.SessionView, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}
	views := make([]*models.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, &models.SessionView{Session: sess, Current: sess.ID == current})
	}
	return views, nil
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpired(ctx, now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge sessions")
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired sessions", "count", n)
	}
	return n, nil
}
