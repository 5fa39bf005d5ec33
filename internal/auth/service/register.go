package service

import (
	"context"
	"errors"

	"quill/internal/auth/models"
	"quill/internal/auth/password"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/audit"
	"quill/pkg/platform/sentinel"
	"quill/pkg/requestcontext"
)

// Register creates an account. Admin callers may assign any role; everyone
// else needs public signup enabled and may only pick viewer or author.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (_ *models.User, err error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	role := req.RequestedRole()
	if err := s.authorizeRegistration(ctx, role); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, role)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventUserCreated, user.ID,
		"role", string(user.Role),
		"created_by", requestcontext.UserID(ctx).String(),
	)
	return user, nil
}

func (s *Service) authorizeRegistration(ctx context.Context, role id.Role) error {
	if id.Role(requestcontext.Role(ctx)) == id.RoleAdmin {
		return nil
	}
	if !s.cfg.AllowPublicSignup {
		return dErrors.New(dErrors.CodeForbidden, "registration is closed")
	}
	if role.AtLeast(id.RoleEditor) {
		return dErrors.New(dErrors.CodeForbidden, "only an admin can assign this role")
	}
	return nil
}

func (s *Service) createUser(ctx context.Context, name, email, plaintext string, role id.Role) (*models.User, error) {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}
	user, err := models.NewUser(id.NewUserID(), name, email, hash, role, now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	return user, nil
}

// EnsureUser creates the user unless the email is taken. It reports whether
// a user was created. Used by the seed command.
func (s *Service) EnsureUser(ctx context.Context, name, email, plaintext string, role id.Role) (*models.User, bool, error) {
	email = models.NormalizeEmail(email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	req := &models.RegisterRequest{Name: name, Email: email, Password: plaintext, Role: string(role)}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, req.RequestedRole())
	if err != nil {
		return nil, false, err
	}
	s.logAudit(ctx, audit.EventUserCreated, user.ID, "role", string(user.Role), "created_by", "seed")
	return user, true, nil
}
