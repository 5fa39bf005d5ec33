package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	authhandler "quill/internal/auth/handler"
	authservice "quill/internal/auth/service"
	lockoutstore "quill/internal/auth/store/lockout"
	sessionstore "quill/internal/auth/store/session"
	userstore "quill/internal/auth/store/user"
	bloghandler "quill/internal/blog/handler"
	"quill/internal/blog/render"
	blogservice "quill/internal/blog/service"
	"quill/internal/blog/store/memory"
	"quill/internal/blog/store/sqlstore"
	httpapi "quill/internal/http"
	jwttoken "quill/internal/jwt_token"
	"quill/internal/platform/config"
	"quill/internal/platform/database"
	"quill/internal/platform/metrics"
	"quill/internal/platform/ratelimit"
	"quill/internal/platform/redis"
	"quill/pkg/platform/audit"
	"quill/pkg/platform/audit/publisher"
	"quill/pkg/platform/audit/store/kafka"
	"quill/pkg/platform/audit/store/logstore"
)

const auditBuffer = 256

// app holds the wired services and the resources Close releases.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db    *database.DB
	redis *redis.Client
	kafka *kafka.Store
	audit *publisher.Publisher

	limiter ratelimit.Store
	// sweepers are the in-process stores whose idle keys are dropped
	// periodically.
	sweepers []sweeper
	tokens   *jwttoken.JWTService
	auth     *authservice.Service
	blog     *blogservice.Service
}

// newApp connects the configured backends. Without DATABASE_URL the stores
// are in memory, without REDIS_URL lockouts are tracked in process and
// without KAFKA_BROKERS audit events go to the log.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(reg)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.URL != "" {
		if a.db, err = database.Open(ctx, cfg.Database); err != nil {
			return nil, err
		}
	}
	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}

	var auditStore audit.Store = logstore.New(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		a.kafka, err = kafka.New(ctx, kafka.Config{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.AuditTopic,
			Partitions:        3,
			ReplicationFactor: 1,
		}, logger)
		if err != nil {
			return nil, err
		}
		auditStore = a.kafka
	}
	a.audit = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(logger),
	)

	memLimiter := ratelimit.NewMemoryStore()
	a.limiter = memLimiter
	a.sweepers = append(a.sweepers, memLimiter)
	if a.redis != nil {
		a.limiter = ratelimit.NewFallbackStore(ratelimit.NewRedisStore(a.redis), memLimiter, logger)
	}

	a.tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	if err := a.wireServices(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) wireServices() error {
	var (
		users    authservice.UserStore
		sessions authservice.SessionStore
		lockouts authservice.LockoutStore
		blogOpts = []blogservice.Option{
			blogservice.WithLogger(a.logger),
			blogservice.WithMetrics(a.metrics),
			blogservice.WithAuditPublisher(a.audit),
		}
		posts      blogservice.PostStore
		categories blogservice.CategoryStore
		tags       blogservice.TagStore
	)
	if a.redis != nil {
		lockouts = lockoutstore.NewRedis(a.redis)
	} else {
		memLockouts := lockoutstore.New()
		lockouts = memLockouts
		a.sweepers = append(a.sweepers, memLockouts)
	}

	if a.db != nil {
		users = userstore.NewSQL(a.db)
		sessions = sessionstore.NewSQL(a.db)
		store := sqlstore.New(a.db)
		posts, categories, tags = store, store, store
		blogOpts = append(blogOpts, blogservice.WithTx(a.db))
	} else {
		memUsers := userstore.New()
		users = memUsers
		sessions = sessionstore.New()
		store := memory.New(memUsers)
		posts, categories, tags = store, store, store
	}

	var err error
	a.auth, err = authservice.New(users, sessions, lockouts, a.tokens, authservice.Config{
		AccessTokenTTL:     a.cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:    a.cfg.Auth.RefreshTokenTTL,
		AllowPublicSignup:  a.cfg.Auth.AllowPublicSignup,
		LoginMaxAttempts:   a.cfg.Auth.LoginMaxAttempts,
		LoginLockoutWindow: a.cfg.Auth.LoginLockoutWindow,
	},
		authservice.WithLogger(a.logger),
		authservice.WithMetrics(a.metrics),
		authservice.WithAuditPublisher(a.audit),
	)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}

	a.blog, err = blogservice.New(posts, categories, tags, render.New(), blogOpts...)
	if err != nil {
		return fmt.Errorf("init blog service: %w", err)
	}
	return nil
}

type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// sweep drops expired keys from the in-process rate limit and lockout stores.
func (a *app) sweep(ctx context.Context) error {
	var errs []error
	removed := 0
	for _, s := range a.sweepers {
		n, err := s.Sweep(ctx)
		removed += n
		errs = append(errs, err)
	}
	if removed > 0 {
		a.logger.DebugContext(ctx, "swept idle in-memory keys", "count", removed)
	}
	return errors.Join(errs...)
}

// routerDeps describes the full HTTP surface.
func (a *app) routerDeps() httpapi.Deps {
	validator := jwttoken.NewJWTServiceAdapter(a.tokens)
	checks := map[string]httpapi.HealthChecker{}
	if a.db != nil {
		checks["database"] = a.db
	}
	if a.redis != nil {
		checks["redis"] = a.redis
	}
	if a.kafka != nil {
		checks["kafka"] = a.kafka
	}
	var authOpts []authhandler.Option
	if rl := a.cfg.RateLimit; rl.AuthRequests > 0 {
		authOpts = append(authOpts, authhandler.WithThrottle(
			ratelimit.Middleware(a.limiter, "auth", rl.AuthRequests, rl.Window, a.logger)))
	}
	return httpapi.Deps{
		Logger:         a.logger,
		Metrics:        a.metrics,
		CORSOrigins:    a.cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		TrustedProxies: a.cfg.Server.TrustedProxies,
		Checks:         checks,
		Routers: []httpapi.RouteRegistrar{
			authhandler.New(a.auth, validator, a.logger, a.cfg.Server.Production(), authOpts...),
			bloghandler.New(a.blog, validator, a.logger),
		},
	}
}

// Close flushes the audit publisher before the stores it writes to go away.
func (a *app) Close() {
	if a.audit != nil {
		a.audit.Close()
	}
	if a.kafka != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.kafka.Close(ctx)
		cancel()
	}
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error releasing resources", "error", err)
	}
}
