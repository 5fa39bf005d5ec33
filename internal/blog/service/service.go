// Package service implements post, category and tag management.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quill/internal/blog/models"
	"quill/internal/platform/metrics"
	id "quill/pkg/domain"
	"quill/pkg/platform/audit"
	txcontext "quill/pkg/platform/tx"
	"quill/pkg/requestcontext"
)

type PostStore interface {
	CreatePost(ctx context.Context, p *models.Post) error
	UpdatePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, postID id.PostID) error
	FindPostByID(ctx context.Context, postID id.PostID) (*models.Post, error)
	FindPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	PostSlugExists(ctx context.Context, slug string, exclude id.PostID) (bool, error)
	ListPosts(ctx context.Context, f models.PostFilter) ([]*models.Post, int, error)
	SetPostTags(ctx context.Context, postID id.PostID, tagIDs []id.TagID) error
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Post, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, categoryID id.CategoryID) error
	FindCategoryByID(ctx context.Context, categoryID id.CategoryID) (*models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.CategoryWithCount, error)
}

type TagStore interface {
	FindOrCreateTag(ctx context.Context, name, slug string, now time.Time) (*models.Tag, error)
	FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error)
	ListTags(ctx context.Context) ([]*models.TagWithCount, error)
}

// Renderer turns post markdown into sanitized HTML.
type Renderer interface {
	Render(src string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service enforces post ownership, status transitions and slug uniqueness
// on top of the stores.
type Service struct {
	posts          PostStore
	categories     CategoryStore
	tags           TagStore
	renderer       Renderer
	tx             txcontext.Runner
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

// WithTx makes multi-step writes atomic. Without it steps run one by one.
func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(posts PostStore, categories CategoryStore, tags TagStore, renderer Renderer, opts ...Option) (*Service, error) {
	if posts == nil {
		return nil, errors.New("post store is required")
	}
	if categories == nil {
		return nil, errors.New("category store is required")
	}
	if tags == nil {
		return nil, errors.New("tag store is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	s := &Service{
		posts:      posts,
		categories: categories,
		tags:       tags,
		renderer:   renderer,
		tx:         txcontext.NoopRunner{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("quill/blog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "blog."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}

// principal is the caller as set by the auth middleware. Anonymous callers
// have a nil id and an empty role.
func principal(ctx context.Context) (id.UserID, id.Role) {
	return requestcontext.UserID(ctx), id.Role(requestcontext.Role(ctx))
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, subject string, attributes ...any) {
	userID := requestcontext.UserID(ctx)
	args := append(attributes, "event", string(event), "log_type", "audit", "subject", subject)
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
		Subject: subject,
		Action:  string(event),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
