// Package handler serves the /posts, /categories and /tags endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/httputil"
	authmw "quill/pkg/platform/middleware/auth"
	"quill/pkg/requestcontext"
)

// Service defines the blog operations the handler needs.
type Service interface {
	ListPosts(ctx context.Context, q models.ListPostsQuery) (*models.PostList, error)
	GetPost(ctx context.Context, slug string) (*models.Post, error)
	CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, error)
	UpdatePost(ctx context.Context, postID id.PostID, req *models.UpdatePostRequest) (*models.Post, error)
	DeletePost(ctx context.Context, postID id.PostID) error
	PublishPost(ctx context.Context, postID id.PostID) (*models.Post, error)
	SchedulePost(ctx context.Context, postID id.PostID, req *models.SchedulePostRequest) (*models.Post, error)

	ListCategories(ctx context.Context) ([]*models.CategoryWithCount, error)
	GetCategory(ctx context.Context, slug string) (*models.Category, error)
	CreateCategory(ctx context.Context, req *models.CategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, categoryID id.CategoryID, req *models.CategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, categoryID id.CategoryID) error

	ListTags(ctx context.Context) ([]*models.TagWithCount, error)
	GetTag(ctx context.Context, slug string) (*models.Tag, error)
}

type Handler struct {
	blog      Service
	validator authmw.TokenValidator
	logger    *slog.Logger
}

func New(blog Service, validator authmw.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{blog: blog, validator: validator, logger: logger}
}

// Register mounts the blog routes. Reads are public with optional auth so
// signed-in users also see their own drafts.
func (h *Handler) Register(r chi.Router) {
	optional := authmw.OptionalAuth(h.validator, h.logger)
	require := func(role id.Role) func(http.Handler) http.Handler {
		return authmw.RequireAuth(h.validator, role, h.logger)
	}

	r.Route("/posts", func(r chi.Router) {
		r.With(optional).Get("/", h.HandleListPosts)
		r.With(optional).Get("/{slug}", h.HandleGetPost)
		r.With(require(id.RoleAuthor)).Post("/", h.HandleCreatePost)
		r.With(require(id.RoleAuthor)).Put("/{id}", h.HandleUpdatePost)
		r.With(require(id.RoleAuthor)).Delete("/{id}", h.HandleDeletePost)
		r.With(require(id.RoleEditor)).Patch("/{id}/publish", h.HandlePublishPost)
		r.With(require(id.RoleEditor)).Patch("/{id}/schedule", h.HandleSchedulePost)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.HandleListCategories)
		r.Get("/{slug}", h.HandleGetCategory)
		r.With(require(id.RoleEditor)).Post("/", h.HandleCreateCategory)
		r.With(require(id.RoleEditor)).Put("/{id}", h.HandleUpdateCategory)
		r.With(require(id.RoleAdmin)).Delete("/{id}", h.HandleDeleteCategory)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.HandleListTags)
		r.Get("/{slug}", h.HandleGetTag)
	})
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	args := []any{"request_id", requestcontext.RequestID(ctx), "error", err}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
