package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"quill/internal/auth/models"
	"quill/internal/auth/password"
	"quill/internal/auth/service/mocks"
	"quill/internal/platform/metrics"
	id "quill/pkg/domain"
)

// ServiceSuite drives the auth service against gomock stores so each
// branch of the login and session flows can be forced.
type ServiceSuite struct {
	suite.Suite
	ctrl               *gomock.Controller
	mockUsers          *mocks.MockUserStore
	mockSessions       *mocks.MockSessionStore
	mockLockouts       *mocks.MockLockoutStore
	mockTokens         *mocks.MockTokenIssuer
	mockAuditPublisher *mocks.MockAuditPublisher
	metrics            *metrics.Metrics
	cfg                Config
	service            *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	password.Cost = bcrypt.MinCost
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockUsers = mocks.NewMockUserStore(s.ctrl)
	s.mockSessions = mocks.NewMockSessionStore(s.ctrl)
	s.mockLockouts = mocks.NewMockLockoutStore(s.ctrl)
	s.mockTokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.mockAuditPublisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.cfg = Config{
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		AllowPublicSignup:  true,
		LoginMaxAttempts:   3,
		LoginLockoutWindow: 15 * time.Minute,
	}
	s.service = s.newService(s.cfg)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(cfg Config) *Service {
	svc, err := New(s.mockUsers, s.mockSessions, s.mockLockouts, s.mockTokens, cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.mockAuditPublisher),
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) newUser(email, plaintext string, role id.Role) *models.User {
	hash, err := password.Hash(plaintext)
	s.Require().NoError(err)
	user, err := models.NewUser(id.NewUserID(), "Test User", email, hash, role, time.Now().UTC())
	s.Require().NoError(err)
	return user
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil user store returns error", func() {
		_, err := New(nil, s.mockSessions, s.mockLockouts, s.mockTokens, Config{})
		s.ErrorContains(err, "user store is required")
	})

	s.Run("nil session store returns error", func() {
		_, err := New(s.mockUsers, nil, s.mockLockouts, s.mockTokens, Config{})
		s.ErrorContains(err, "session store is required")
	})

	s.Run("nil lockout store returns error", func() {
		_, err := New(s.mockUsers, s.mockSessions, nil, s.mockTokens, Config{})
		s.ErrorContains(err, "lockout store is required")
	})

	s.Run("nil token issuer returns error", func() {
		_, err := New(s.mockUsers, s.mockSessions, s.mockLockouts, nil, Config{})
		s.ErrorContains(err, "token issuer is required")
	})

	s.Run("zero config gets defaults", func() {
		svc, err := New(s.mockUsers, s.mockSessions, s.mockLockouts, s.mockTokens, Config{})
		s.Require().NoError(err)
		s.Equal(time.Hour, svc.cfg.AccessTokenTTL)
		s.Equal(7*24*time.Hour, svc.cfg.RefreshTokenTTL)
		s.Equal(5, svc.cfg.LoginMaxAttempts)
		s.Equal(15*time.Minute, svc.cfg.LoginLockoutWindow)
	})
}

func TestHashTokenIsStableHex(t *testing.T) {
	a := hashToken("token")
	if a != hashToken("token") || len(a) != 64 {
		t.Fatalf("unexpected hash %q", a)
	}
	if a == hashToken("other") {
		t.Fatal("different tokens must hash differently")
	}
}

func TestLockoutKeyNormalizesEmail(t *testing.T) {
	if got := lockoutKey("  Ana@Example.COM ", "10.0.0.1"); got != "ana@example.com|10.0.0.1" {
		t.Fatalf("got %q", got)
	}
}

func ctxWithAdmin() context.Context {
	return withRole(context.Background(), id.RoleAdmin)
}
