package handler

import (
	"context"
	"net/http"
	"time"

	"quill/pkg/requestcontext"
)

// RefreshTokenCookie carries the long-lived refresh token.
const RefreshTokenCookie = "refresh_token"

func (h *Handler) setTokenCookie(ctx context.Context, w http.ResponseWriter, name, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(requestcontext.Now(ctx)).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
