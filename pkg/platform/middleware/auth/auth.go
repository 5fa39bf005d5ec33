package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/httputil"
	"quill/pkg/requestcontext"
)

// AccessTokenCookie is the cookie carrying the signed access token.
const AccessTokenCookie = "access_token"

// TokenValidator validates an access token and returns its principal.
type TokenValidator interface {
	ValidateAccessToken(token string) (*Claims, error)
}

// Claims is the subset of access token claims the middleware needs.
type Claims struct {
	UserID    id.UserID
	Role      id.Role
	SessionID id.SessionID
}

// tokenFromRequest reads the access token cookie, falling back to a bearer
// header for non-browser clients.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// RequireAuth rejects requests without a valid access token (401) and those
// whose role is below minRole (403).
func RequireAuth(validator TokenValidator, minRole id.Role, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := tokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if !claims.Role.AtLeast(minRole) {
				logger.WarnContext(ctx, "forbidden - insufficient role",
					"user_id", claims.UserID.String(),
					"role", claims.Role,
					"required_role", minRole,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, claims.UserID, string(claims.Role), claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the principal when a valid token is present and lets
// every request through.
func OptionalAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				logger.DebugContext(r.Context(), "ignoring invalid optional token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}
			ctx := requestcontext.WithPrincipal(r.Context(), claims.UserID, string(claims.Role), claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
