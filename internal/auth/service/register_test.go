package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"quill/internal/auth/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/sentinel"
	"quill/pkg/requestcontext"
)

func withRole(ctx context.Context, role id.Role) context.Context {
	return requestcontext.WithPrincipal(ctx, id.NewUserID(), string(role), id.NewSessionID())
}

func registerRequest(role string) *models.RegisterRequest {
	req := &models.RegisterRequest{Name: "Ana", Email: "Ana@Example.com", Password: "secret123", Role: role}
	req.Normalize()
	return req
}

func (s *ServiceSuite) TestRegister() {
	s.Run("anonymous signup creates an author by default", func() {
		var saved *models.User
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				saved = u
				return nil
			})

		user, err := s.service.Register(context.Background(), registerRequest(""))
		s.Require().NoError(err)
		s.Equal(id.RoleAuthor, user.Role)
		s.Equal("ana@example.com", user.Email)
		s.NotEqual("secret123", saved.PasswordHash)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.UsersCreated))
	})

	s.Run("anonymous signup may pick viewer", func() {
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		user, err := s.service.Register(context.Background(), registerRequest("viewer"))
		s.Require().NoError(err)
		s.Equal(id.RoleViewer, user.Role)
	})

	s.Run("anonymous signup cannot pick editor", func() {
		_, err := s.service.Register(context.Background(), registerRequest("editor"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("non-admin caller is treated as anonymous", func() {
		_, err := s.service.Register(withRole(context.Background(), id.RoleEditor), registerRequest("admin"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admin may assign any role", func() {
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		user, err := s.service.Register(ctxWithAdmin(), registerRequest("editor"))
		s.Require().NoError(err)
		s.Equal(id.RoleEditor, user.Role)
	})

	s.Run("duplicate email is a conflict", func() {
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.Register(context.Background(), registerRequest(""))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestRegister_SignupClosed() {
	svc := s.newService(Config{AllowPublicSignup: false})

	s.Run("anonymous caller is forbidden", func() {
		_, err := svc.Register(context.Background(), registerRequest("viewer"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admin can still register users", func() {
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		_, err := svc.Register(ctxWithAdmin(), registerRequest("admin"))
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestEnsureUser() {
	ctx := context.Background()

	s.Run("existing email is left untouched", func() {
		existing := s.newUser("admin@example.com", "secret123", id.RoleAdmin)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "admin@example.com").Return(existing, nil)

		user, created, err := s.service.EnsureUser(ctx, "Admin", "Admin@example.com", "whatever", id.RoleAdmin)
		s.Require().NoError(err)
		s.False(created)
		s.Equal(existing.ID, user.ID)
	})

	s.Run("missing email is created with the given role", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "admin@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		user, created, err := s.service.EnsureUser(ctx, "Admin", "admin@example.com", "secret123", id.RoleAdmin)
		s.Require().NoError(err)
		s.True(created)
		s.Equal(id.RoleAdmin, user.Role)
	})

	s.Run("short password is rejected", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "admin@example.com").Return(nil, sentinel.ErrNotFound)
		_, _, err := s.service.EnsureUser(ctx, "Admin", "admin@example.com", "123", id.RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
