package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/httputil"
	"quill/pkg/requestcontext"
)

// Middleware limits each client IP to limit requests per window for the
// routes it wraps. class separates the windows of different route groups.
// Store errors let the request through.
func Middleware(store Store, class string, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			res, err := store.Allow(ctx, class+":"+ip, limit, window)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed", "error", err, "class", class)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
				logger.WarnContext(ctx, "rate limit exceeded", "class", class)
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
