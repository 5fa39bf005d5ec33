package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quill/internal/auth/password"
	"quill/internal/blog/models"
	httpapi "quill/internal/http"
	"quill/internal/platform/config"
	"quill/pkg/testutil"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.Server{MaxBodyBytes: 1 << 20},
		Auth: config.Auth{
			JWTSigningKey:      "test-signing-key",
			Issuer:             "quill",
			AccessTokenTTL:     time.Hour,
			RefreshTokenTTL:    24 * time.Hour,
			AllowPublicSignup:  true,
			LoginMaxAttempts:   1000,
			LoginLockoutWindow: 15 * time.Minute,
		},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*app, http.Handler) {
	t.Helper()
	password.Cost = bcrypt.MinCost
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, httpapi.NewRouter(a.routerDeps())
}

func register(t *testing.T, router http.Handler, email, pw string) {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ada", "email": email, "password": pw,
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
}

// loginFrom sends a login that claims to come from forwardedFor.
func loginFrom(t *testing.T, router http.Handler, forwardedFor, email, pw string) int {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": pw})
	req.Header.Set("X-Forwarded-For", forwardedFor)
	return testutil.DoRequest(router, req).Code
}

func TestInMemoryAppServesAPI(t *testing.T) {
	a, router := newTestRouter(t, testConfig())

	assert.Nil(t, a.db)
	assert.Nil(t, a.redis)
	assert.Nil(t, a.kafka)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	register(t, router, "ada@example.com", "correct-horse-battery")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/posts", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	list := testutil.UnmarshalResponse[models.PostList](t, rr)
	assert.Empty(t, list.Posts)
	assert.Equal(t, 0, list.Pagination.Total)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/posts?page=100000000000000000&pageSize=100", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	list = testutil.UnmarshalResponse[models.PostList](t, rr)
	assert.Empty(t, list.Posts)
}

func TestInMemoryAppSweepsIdleKeys(t *testing.T) {
	a, router := newTestRouter(t, testConfig())
	require.Len(t, a.sweepers, 2, "the rate limit and lockout stores are both swept")

	register(t, router, "ada@example.com", "correct-horse-battery")
	assert.Equal(t, http.StatusUnauthorized, loginFrom(t, router, "", "ada@example.com", "wrong-password"))
	require.NoError(t, a.sweep(context.Background()))
}

func TestForwardedForDoesNotEvadeAuthProtections(t *testing.T) {
	t.Run("rate limit keys on the peer address", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimit = config.RateLimit{AuthRequests: 5, Window: time.Minute}
		_, router := newTestRouter(t, cfg)

		counts := map[int]int{}
		for i := 0; i < 20; i++ {
			counts[loginFrom(t, router, fmt.Sprintf("10.0.0.%d", i), "nobody@example.com", "wrong-password")]++
		}
		assert.Equal(t, 5, counts[http.StatusUnauthorized])
		assert.Equal(t, 15, counts[http.StatusTooManyRequests])
	})

	t.Run("lockout keys on the peer address", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.LoginMaxAttempts = 3
		_, router := newTestRouter(t, cfg)
		register(t, router, "ada@example.com", "correct-horse-battery")

		counts := map[int]int{}
		for i := 0; i < 10; i++ {
			counts[loginFrom(t, router, fmt.Sprintf("10.0.1.%d", i), "ada@example.com", "wrong-password")]++
		}
		assert.Equal(t, 3, counts[http.StatusUnauthorized])
		assert.Equal(t, 7, counts[http.StatusTooManyRequests])

		status := loginFrom(t, router, "10.0.2.1", "ada@example.com", "correct-horse-battery")
		assert.Equal(t, http.StatusTooManyRequests, status)
	})
}
