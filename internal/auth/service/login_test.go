package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"quill/internal/auth/models"
	jwttoken "quill/internal/jwt_token"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/sentinel"
	"quill/pkg/requestcontext"
)

const (
	testIP = "203.0.113.7"
	testUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func loginCtx() context.Context {
	ctx := requestcontext.WithClientMetadata(context.Background(), testIP, testUA)
	return requestcontext.WithTime(ctx, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) TestLogin() {
	user := s.newUser("ana@example.com", "secret123", id.RoleAuthor)
	key := "ana@example.com|" + testIP

	s.Run("valid credentials open a session", func() {
		exp := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		s.mockLockouts.EXPECT().Failures(gomock.Any(), key).Return(0, time.Duration(0), nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ana@example.com").Return(user, nil)
		s.mockLockouts.EXPECT().Clear(gomock.Any(), key).Return(nil)
		s.mockTokens.EXPECT().GenerateRefreshToken(user.ID, gomock.Any(), s.cfg.RefreshTokenTTL).
			Return("refresh-token", exp.Add(7*24*time.Hour), nil)
		s.mockTokens.EXPECT().GenerateAccessToken(gomock.Any(), s.cfg.AccessTokenTTL).DoAndReturn(
			func(sub jwttoken.Subject, _ time.Duration) (string, time.Time, error) {
				s.Equal(user.ID, sub.UserID)
				s.Equal(id.RoleAuthor, sub.Role)
				s.False(sub.SessionID.IsNil())
				return "access-token", exp, nil
			})
		var stored *models.Session
		s.mockSessions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sess *models.Session) error {
				stored = sess
				return nil
			})

		result, err := s.service.Login(loginCtx(), &models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
		s.Require().NoError(err)
		s.Equal("access-token", result.AccessToken)
		s.Equal("refresh-token", result.RefreshToken)
		s.Equal(exp, result.AccessExpiresAt)

		s.Require().NotNil(stored)
		s.Equal(hashToken("refresh-token"), stored.RefreshTokenHash)
		s.NotContains(stored.RefreshTokenHash, "refresh-token")
		s.Equal(testIP, stored.ClientIP)
		s.Contains(stored.DeviceName, "Chrome")
		s.Equal(time.Date(2026, 5, 8, 9, 0, 0, 0, time.UTC), stored.ExpiresAt)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Logins.WithLabelValues("success")))
	})

	s.Run("unknown email fails like a bad password", func() {
		s.mockLockouts.EXPECT().Failures(gomock.Any(), "ghost@example.com|"+testIP).Return(0, time.Duration(0), nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockLockouts.EXPECT().RecordFailure(gomock.Any(), "ghost@example.com|"+testIP, s.cfg.LoginLockoutWindow).
			Return(1, 15*time.Minute, nil)

		_, err := s.service.Login(loginCtx(), &models.LoginRequest{Email: "ghost@example.com", Password: "secret123"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal("invalid email or password", err.Error())
	})

	s.Run("wrong password records a failure", func() {
		s.mockLockouts.EXPECT().Failures(gomock.Any(), key).Return(1, 10*time.Minute, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ana@example.com").Return(user, nil)
		s.mockLockouts.EXPECT().RecordFailure(gomock.Any(), key, s.cfg.LoginLockoutWindow).Return(2, 10*time.Minute, nil)

		_, err := s.service.Login(loginCtx(), &models.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("too many failures lock the pair out", func() {
		s.mockLockouts.EXPECT().Failures(gomock.Any(), key).Return(3, 7*time.Minute, nil)

		_, err := s.service.Login(loginCtx(), &models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
		var lockout *models.LockoutError
		s.Require().True(errors.As(err, &lockout))
		s.Equal(7*time.Minute, lockout.RetryAfter)
		s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Lockouts))
	})

	s.Run("lockout store outage fails open", func() {
		s.mockLockouts.EXPECT().Failures(gomock.Any(), key).Return(0, time.Duration(0), errors.New("redis down"))
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ana@example.com").Return(user, nil)
		s.mockLockouts.EXPECT().RecordFailure(gomock.Any(), key, gomock.Any()).Return(0, time.Duration(0), errors.New("redis down"))

		_, err := s.service.Login(loginCtx(), &models.LoginRequest{Email: "ana@example.com", Password: "bad-password"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("session store failure is internal", func() {
		s.mockLockouts.EXPECT().Failures(gomock.Any(), key).Return(0, time.Duration(0), nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ana@example.com").Return(user, nil)
		s.mockLockouts.EXPECT().Clear(gomock.Any(), key).Return(nil)
		s.mockTokens.EXPECT().GenerateRefreshToken(gomock.Any(), gomock.Any(), gomock.Any()).Return("r", time.Now(), nil)
		s.mockTokens.EXPECT().GenerateAccessToken(gomock.Any(), gomock.Any()).Return("a", time.Now(), nil)
		s.mockSessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		_, err := s.service.Login(loginCtx(), &models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
