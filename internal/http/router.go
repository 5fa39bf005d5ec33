// Package httpapi assembles the HTTP surface: middleware chain, health,
// metrics and the feature routers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"quill/internal/platform/metrics"
	"quill/internal/platform/middleware"
	"quill/pkg/platform/httputil"
	"quill/pkg/platform/middleware/metadata"
	"quill/pkg/platform/middleware/requesttime"
	"quill/pkg/requestcontext"
)

const healthTimeout = 2 * time.Second

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthChecker is a dependency /health pings.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	CORSOrigins  []string
	MaxBodyBytes int64
	// TrustedProxies are the peers whose forwarding headers are believed.
	TrustedProxies []netip.Prefix
	// Checks are pinged by /health, keyed by the name reported on failure.
	Checks  map[string]HealthChecker
	Routers []RouteRegistrar
}

func NewRouter(d Deps) http.Handler {
	var observer middleware.LatencyObserver
	if d.Metrics != nil {
		observer = d.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata(d.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger, observer))
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.MaxBody(d.MaxBodyBytes))
	r.Use(middleware.RequireJSON)

	r.Get("/health", healthHandler(d.Checks))
	r.Handle("/metrics", metrics.Handler())
	for _, reg := range d.Routers {
		reg.Register(r)
	}
	return r
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// healthHandler pings every check concurrently and answers 503 if any fails.
func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		var (
			mu       sync.Mutex
			failures map[string]string
		)
		var g errgroup.Group
		for name, check := range checks {
			g.Go(func() error {
				if err := check.Health(ctx); err != nil {
					mu.Lock()
					defer mu.Unlock()
					if failures == nil {
						failures = make(map[string]string)
					}
					failures[name] = err.Error()
				}
				return nil
			})
		}
		_ = g.Wait()

		resp := healthResponse{Status: "ok", Timestamp: requestcontext.Now(r.Context()).UTC()}
		status := http.StatusOK
		if len(failures) > 0 {
			resp.Status = "unavailable"
			resp.Checks = failures
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
