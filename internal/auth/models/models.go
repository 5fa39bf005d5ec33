package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
)

const (
	MinPasswordLength = 6
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
	MaxNameLength    = 100
)

// User is an account that can sign in.
//
// Invariants:
//   - Email is lowercased, trimmed and unique
//   - Role is one of the ladder roles
//   - PasswordHash is never serialized
type User struct {
	ID           id.UserID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         id.Role   `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewUser(userID id.UserID, name, email, passwordHash string, role id.Role, now time.Time) (*User, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user name cannot be empty")
	}
	if email == "" || email != NormalizeEmail(email) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user email must be normalized")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role")
	}
	return &User{
		ID:           userID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session is one signed-in device. Only the SHA-256 of its refresh token is kept.
type Session struct {
	ID               id.SessionID `json:"id"`
	UserID           id.UserID    `json:"-"`
	RefreshTokenHash string       `json:"-"`
	UserAgent        string       `json:"-"`
	DeviceName       string       `json:"device_name"`
	ClientIP         string       `json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
	ExpiresAt        time.Time    `json:"expires_at"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionView is a session as shown to its owner.
type SessionView struct {
	*Session
	Current bool `json:"current"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
}

func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if utf8.RuneCountInString(r.Name) > MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 100 characters or less")
	}
	if !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.Role != "" {
		if _, err := id.ParseRole(r.Role); err != nil {
			return err
		}
	}
	return nil
}

// RequestedRole returns the role asked for, defaulting to author.
func (r *RegisterRequest) RequestedRole() id.Role {
	if r.Role == "" {
		return id.RoleAuthor
	}
	return id.Role(r.Role)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}
	if len(pw) > MaxPasswordBytes {
		return dErrors.New(dErrors.CodeValidation, "password must be 72 bytes or less")
	}
	return nil
}

// LoginResult carries the signed-in user and the cookie material.
type LoginResult struct {
	User             *User
	Session          *Session
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshResult carries a new access token for an existing session.
type RefreshResult struct {
	User            *User
	AccessToken     string
	AccessExpiresAt time.Time
}

// LockoutError is returned when an (email, ip) pair has too many failures.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return "too many failed login attempts"
}

func (e *LockoutError) Unwrap() error {
	return dErrors.New(dErrors.CodeTooManyRequests, "too many failed login attempts, try again later")
}
