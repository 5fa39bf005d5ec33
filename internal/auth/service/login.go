package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"quill/internal/auth/device"
	"quill/internal/auth/models"
	"quill/internal/auth/password"
	jwttoken "quill/internal/jwt_token"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/audit"
	"quill/pkg/platform/sentinel"
	"quill/pkg/requestcontext"
)

var errInvalidCredentials = dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")

// Login checks credentials, opens a session and issues both tokens.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (_ *models.LoginResult, err error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	clientIP := requestcontext.ClientIP(ctx)
	key := lockoutKey(req.Email, clientIP)

	if err := s.checkLockout(ctx, key); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}
		password.CompareDummy(req.Password)
		s.loginFailed(ctx, key, "unknown_email")
		return nil, errInvalidCredentials
	}
	if err := password.Verify(req.Password, user.PasswordHash); err != nil {
		s.loginFailed(ctx, key, "bad_password", "user_id", user.ID.String())
		return nil, errInvalidCredentials
	}

	if err := s.lockouts.Clear(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to clear login failures", "error", err)
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementLogin("success")
	}
	s.logAudit(ctx, audit.EventLoginSucceeded, user.ID)
	s.logAudit(ctx, audit.EventSessionCreated, user.ID,
		"session_id", result.Session.ID.String(),
		"device", result.Session.DeviceName,
	)
	return result, nil
}

// checkLockout fails open when the lockout store is unreachable.
func (s *Service) checkLockout(ctx context.Context, key string) error {
	count, retryAfter, err := s.lockouts.Failures(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read login failures", "error", err)
		return nil
	}
	if count < s.cfg.LoginMaxAttempts {
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncrementLogin("locked")
	}
	s.authFailure(ctx, "locked_out")
	return &models.LockoutError{RetryAfter: retryAfter}
}

func (s *Service) loginFailed(ctx context.Context, key, reason string, attributes ...any) {
	if s.metrics != nil {
		s.metrics.IncrementLogin("failure")
	}
	s.authFailure(ctx, reason, attributes...)

	count, _, err := s.lockouts.RecordFailure(ctx, key, s.cfg.LoginLockoutWindow)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure", "error", err)
		return
	}
	if count == s.cfg.LoginMaxAttempts {
		s.logAudit(ctx, audit.EventLockoutTriggered, id.UserID{}, "attempts", count)
	}
}

func (s *Service) openSession(ctx context.Context, user *models.User) (*models.LoginResult, error) {
	issuedAt := now(ctx)
	sessionID := id.NewSessionID()

	refreshToken, refreshExp, err := s.tokens.GenerateRefreshToken(user.ID, sessionID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	accessToken, accessExp, err := s.tokens.GenerateAccessToken(subjectFor(user, sessionID), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}

	userAgent := requestcontext.UserAgent(ctx)
	session := &models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refreshToken),
		UserAgent:        userAgent,
		DeviceName:       device.ParseUserAgent(userAgent),
		ClientIP:         requestcontext.ClientIP(ctx),
		CreatedAt:        issuedAt,
		ExpiresAt:        issuedAt.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	return &models.LoginResult{
		User:             user,
		Session:          session,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func subjectFor(user *models.User, sessionID id.SessionID) jwttoken.Subject {
	return jwttoken.Subject{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		SessionID: sessionID,
	}
}

func lockoutKey(email, clientIP string) string {
	return models.NormalizeEmail(email) + "|" + clientIP
}

// hashToken returns the hex SHA-256 stored in place of a refresh token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
