package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"quill/internal/auth/models"
	jwttoken "quill/internal/jwt_token"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestRefresh() {
	ctx := loginCtx()
	user := s.newUser("ana@example.com", "secret123", id.RoleEditor)
	sessionID := id.NewSessionID()
	claims := &jwttoken.RefreshTokenClaims{UserID: user.ID.String(), SessionID: sessionID.String(), Type: "refresh"}

	s.Run("missing token is unauthorized", func() {
		_, err := s.service.Refresh(ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("invalid signature is unauthorized", func() {
		s.mockTokens.EXPECT().ValidateRefreshToken("forged").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
		_, err := s.service.Refresh(ctx, "forged")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("revoked or expired session is unauthorized", func() {
		s.mockTokens.EXPECT().ValidateRefreshToken("stale").Return(claims, nil)
		s.mockSessions.EXPECT().FindActive(gomock.Any(), sessionID, user.ID, hashToken("stale"), gomock.Any()).
			Return(nil, sentinel.ErrExpired)
		_, err := s.service.Refresh(ctx, "stale")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deleted user is unauthorized", func() {
		s.mockTokens.EXPECT().ValidateRefreshToken("orphan").Return(claims, nil)
		s.mockSessions.EXPECT().FindActive(gomock.Any(), sessionID, user.ID, hashToken("orphan"), gomock.Any()).
			Return(&models.Session{ID: sessionID, UserID: user.ID}, nil)
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Refresh(ctx, "orphan")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("live session gets a new access token for the same session", func() {
		exp := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		s.mockTokens.EXPECT().ValidateRefreshToken("good").Return(claims, nil)
		s.mockSessions.EXPECT().FindActive(gomock.Any(), sessionID, user.ID, hashToken("good"), gomock.Any()).
			Return(&models.Session{ID: sessionID, UserID: user.ID}, nil)
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)
		s.mockTokens.EXPECT().GenerateAccessToken(gomock.Any(), s.cfg.AccessTokenTTL).DoAndReturn(
			func(sub jwttoken.Subject, _ time.Duration) (string, time.Time, error) {
				s.Equal(sessionID, sub.SessionID)
				s.Equal(id.RoleEditor, sub.Role)
				return "new-access", exp, nil
			})

		result, err := s.service.Refresh(ctx, "good")
		s.Require().NoError(err)
		s.Equal("new-access", result.AccessToken)
		s.Equal(user.ID, result.User.ID)
	})
}

func (s *ServiceSuite) TestLogout() {
	ctx := context.Background()

	s.Run("empty token is a no-op", func() {
		s.service.Logout(ctx, "")
	})

	s.Run("known token deletes its session", func() {
		userID := id.NewUserID()
		s.mockSessions.EXPECT().DeleteByTokenHash(gomock.Any(), hashToken("tok")).Return(true, nil)
		s.mockTokens.EXPECT().ValidateRefreshToken("tok").
			Return(&jwttoken.RefreshTokenClaims{UserID: userID.String()}, nil)
		s.service.Logout(ctx, "tok")
	})

	s.Run("unknown token is ignored", func() {
		s.mockSessions.EXPECT().DeleteByTokenHash(gomock.Any(), hashToken("gone")).Return(false, nil)
		s.service.Logout(ctx, "gone")
	})

	s.Run("store failure is swallowed", func() {
		s.mockSessions.EXPECT().DeleteByTokenHash(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))
		s.service.Logout(ctx, "tok")
	})
}

func (s *ServiceSuite) TestMe() {
	ctx := context.Background()
	user := s.newUser("ana@example.com", "secret123", id.RoleViewer)

	s.Run("anonymous is unauthorized", func() {
		_, err := s.service.Me(ctx, id.UserID{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("returns the stored user", func() {
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)
		got, err := s.service.Me(ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user.Email, got.Email)
	})

	s.Run("deleted user is unauthorized", func() {
		s.mockUsers.EXPECT().FindByID(gomock.Any(), user.ID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Me(ctx, user.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestListSessionsAndPurge() {
	ctx := loginCtx()
	userID := id.NewUserID()
	current := id.NewSessionID()
	other := id.NewSessionID()

	s.mockSessions.EXPECT().ListByUser(gomock.Any(), userID, gomock.Any()).Return([]*models.Session{
		{ID: current, UserID: userID, DeviceName: "Chrome on macOS"},
		{ID: other, UserID: userID, DeviceName: "Safari on iPhone"},
	}, nil)

	views, err := s.service.ListSessions(ctx, userID, current)
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.True(views[0].Current)
	s.False(views[1].Current)

	s.mockSessions.EXPECT().DeleteExpired(gomock.Any(), time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)).Return(4, nil)
	n, err := s.service.PurgeExpiredSessions(ctx)
	s.Require().NoError(err)
	s.Equal(4, n)
}
