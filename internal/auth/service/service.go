package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quill/internal/auth/models"
	jwttoken "quill/internal/jwt_token"
	"quill/internal/platform/metrics"
	id "quill/pkg/domain"
	"quill/pkg/platform/audit"
	"quill/pkg/requestcontext"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindActive(ctx context.Context, sessionID id.SessionID, userID id.UserID, tokenHash string, now time.Time) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// LockoutStore counts failed logins per (email, ip) key in fixed windows.
type LockoutStore interface {
	Failures(ctx context.Context, key string) (int, time.Duration, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
	Clear(ctx context.Context, key string) error
}

type TokenIssuer interface {
	GenerateAccessToken(sub jwttoken.Subject, expiresIn time.Duration) (string, time.Time, error)
	GenerateRefreshToken(userID id.UserID, sessionID id.SessionID, expiresIn time.Duration) (string, time.Time, error)
	ValidateRefreshToken(token string) (*jwttoken.RefreshTokenClaims, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config holds token lifetimes and login policy.
type Config struct {
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AllowPublicSignup  bool
	LoginMaxAttempts   int
	LoginLockoutWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.LoginMaxAttempts <= 0 {
		c.LoginMaxAttempts = 5
	}
	if c.LoginLockoutWindow <= 0 {
		c.LoginLockoutWindow = 15 * time.Minute
	}
	return c
}

// Service implements registration, login and cookie-session management.
type Service struct {
	users          UserStore
	sessions       SessionStore
	lockouts       LockoutStore
	tokens         TokenIssuer
	cfg            Config
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(users UserStore, sessions SessionStore, lockouts LockoutStore, tokens TokenIssuer, cfg Config, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if lockouts == nil {
		return nil, errors.New("lockout store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		lockouts: lockouts,
		tokens:   tokens,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("quill/auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "auth."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// now is the request time in UTC at the precision the stores keep.
func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, userID id.UserID, attributes ...any) {
	args := append(attributes, "event", string(event), "log_type", "audit")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if !userID.IsNil() {
		args = append(args, "user_id", userID.String())
	}
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:  userID,
		Subject: userID.String(),
		Action:  string(event),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

// authFailure logs and audits a rejected authentication attempt.
func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	args := append(attributes, "event", string(audit.EventAuthFailed), "reason", reason, "log_type", "audit")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.WarnContext(ctx, string(audit.EventAuthFailed), args...)
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action: string(audit.EventAuthFailed),
		Reason: reason,
	})
}
