package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quill/internal/auth/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/httputil"
	authmw "quill/pkg/platform/middleware/auth"
	"quill/pkg/requestcontext"
)

// Service defines the auth operations the handler needs.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string)
	Me(ctx context.Context, userID id.UserID) (*models.User, error)
	ListSessions(ctx context.Context, userID id.UserID, current id.SessionID) ([]*models.SessionView, error)
}

// Handler serves the /auth endpoints.
type Handler struct {
	auth          Service
	validator     authmw.TokenValidator
	logger        *slog.Logger
	secureCookies bool
	throttle      []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithThrottle wraps the credential endpoints (register and login).
func WithThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.throttle = append(h.throttle, mw)
	}
}

// New creates an auth Handler. secureCookies marks token cookies Secure and
// should be set in production.
func New(auth Service, validator authmw.TokenValidator, logger *slog.Logger, secureCookies bool, opts ...Option) *Handler {
	h := &Handler{
		auth:          auth,
		validator:     validator,
		logger:        logger,
		secureCookies: secureCookies,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(h.throttle...).With(authmw.OptionalAuth(h.validator, h.logger)).Post("/register", h.HandleRegister)
		r.With(h.throttle...).Post("/login", h.HandleLogin)
		r.Post("/refresh", h.HandleRefresh)
		r.Post("/logout", h.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.validator, id.RoleViewer, h.logger))
			r.Get("/me", h.HandleMe)
			r.Get("/sessions", h.HandleListSessions)
		})
	})
}

type userResponse struct {
	Message string       `json:"message,omitempty"`
	User    *models.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionsResponse struct {
	Sessions []*models.SessionView `json:"sessions"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[models.RegisterRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid register request")
		return
	}
	user, err := h.auth.Register(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err, "failed to register user")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, userResponse{Message: "user_created", User: user})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[models.LoginRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid login request")
		return
	}
	result, err := h.auth.Login(ctx, req)
	if err != nil {
		var lockout *models.LockoutError
		if errors.As(err, &lockout) {
			w.Header().Set("Retry-After", retryAfterSeconds(lockout))
		}
		h.writeError(ctx, w, err, "login failed")
		return
	}
	h.setTokenCookie(ctx, w, authmw.AccessTokenCookie, result.AccessToken, result.AccessExpiresAt)
	h.setTokenCookie(ctx, w, RefreshTokenCookie, result.RefreshToken, result.RefreshExpiresAt)
	httputil.WriteJSON(w, http.StatusOK, userResponse{User: result.User})
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.auth.Refresh(ctx, cookieValue(r, RefreshTokenCookie))
	if err != nil {
		h.writeError(ctx, w, err, "refresh failed")
		return
	}
	h.setTokenCookie(ctx, w, authmw.AccessTokenCookie, result.AccessToken, result.AccessExpiresAt)
	httputil.WriteJSON(w, http.StatusOK, userResponse{User: result.User})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.auth.Logout(ctx, cookieValue(r, RefreshTokenCookie))
	h.clearCookie(w, authmw.AccessTokenCookie)
	h.clearCookie(w, RefreshTokenCookie)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "logged_out"})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.auth.Me(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "failed to load current user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := h.auth.ListSessions(ctx, requestcontext.UserID(ctx), requestcontext.SessionID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "failed to list sessions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

// writeError logs at warn for client errors and at error for internal ones.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	args := []any{"request_id", requestcontext.RequestID(ctx), "error", err}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}

func retryAfterSeconds(lockout *models.LockoutError) string {
	secs := int(math.Ceil(lockout.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
