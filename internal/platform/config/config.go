package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration, read from the environment.
type Config struct {
	Server    Server
	Auth      Auth
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	CORS      CORS
	Scheduler Scheduler
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr         string
	Environment  string
	MaxBodyBytes int64
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Requests from
	// any other peer are keyed by their socket address.
	TrustedProxies []netip.Prefix
}

// Production reports whether cookies must be Secure and logs JSON.
func (s Server) Production() bool { return s.Environment == "production" }

type Auth struct {
	JWTSigningKey      string
	Issuer             string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AllowPublicSignup  bool
	LoginMaxAttempts   int
	LoginLockoutWindow time.Duration
	SessionPurgeEvery  time.Duration
}

// Database selects the SQL backend. An empty URL means in-memory stores.
type Database struct {
	URL          string
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers    []string
	AuditTopic string
}

type CORS struct {
	AllowedOrigins []string
}

type Scheduler struct {
	Interval time.Duration
}

// RateLimit bounds requests per client IP to the login and register
// endpoints. AuthRequests of 0 disables the limiter.
type RateLimit struct {
	AuthRequests int
	Window       time.Duration
}

// FromEnv builds the configuration from environment variables with
// development defaults.
func FromEnv() (Config, error) {
	var errs []error
	env := getenv("QUILL_ENV", "development")

	cfg := Config{
		Server: Server{
			Addr:           getenv("QUILL_ADDR", ":8080"),
			Environment:    env,
			MaxBodyBytes:   int64(intEnv("MAX_BODY_BYTES", 2<<20, &errs)),
			TrustedProxies: prefixListEnv("TRUSTED_PROXIES", &errs),
		},
		Auth: Auth{
			JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
			Issuer:             getenv("JWT_ISSUER", "quill"),
			AccessTokenTTL:     durationEnv("ACCESS_TOKEN_TTL", time.Hour, &errs),
			RefreshTokenTTL:    durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour, &errs),
			AllowPublicSignup:  os.Getenv("ALLOW_PUBLIC_SIGNUP") == "true",
			LoginMaxAttempts:   intEnv("LOGIN_MAX_ATTEMPTS", 5, &errs),
			LoginLockoutWindow: durationEnv("LOGIN_LOCKOUT_WINDOW", 15*time.Minute, &errs),
			SessionPurgeEvery:  durationEnv("SESSION_PURGE_INTERVAL", time.Hour, &errs),
		},
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       getenv("DATABASE_DRIVER", "pgx"),
			MaxOpenConns: intEnv("DATABASE_MAX_OPEN_CONNS", 10, &errs),
			MaxIdleConns: intEnv("DATABASE_MAX_IDLE_CONNS", 5, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: Kafka{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getenv("KAFKA_AUDIT_TOPIC", "quill.audit"),
		},
		CORS: CORS{
			AllowedOrigins: corsOrigins(),
		},
		Scheduler: Scheduler{
			Interval: durationEnv("SCHEDULER_INTERVAL", time.Minute, &errs),
		},
		RateLimit: RateLimit{
			AuthRequests: intEnv("RATE_LIMIT_AUTH_REQUESTS", 20, &errs),
			Window:       durationEnv("RATE_LIMIT_WINDOW", time.Minute, &errs),
		},
	}

	if cfg.Auth.JWTSigningKey == "" {
		if cfg.Server.Production() {
			errs = append(errs, errors.New("JWT_SIGNING_KEY is required in production"))
		}
		cfg.Auth.JWTSigningKey = devSigningKey
	}
	if cfg.Auth.LoginMaxAttempts < 1 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be at least 1"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_INTERVAL must be positive"))
	}
	if cfg.RateLimit.AuthRequests > 0 && cfg.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	switch cfg.Database.Driver {
	case "pgx", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q: want pgx or postgres", cfg.Database.Driver))
	}

	return cfg, errors.Join(errs...)
}

func corsOrigins() []string {
	if v := splitList(os.Getenv("CORS_ORIGINS")); len(v) > 0 {
		return v
	}
	if v := splitList(os.Getenv("CORS_ORIGIN")); len(v) > 0 {
		return v
	}
	return []string{"http://localhost:5173"}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func intEnv(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

// prefixListEnv parses a comma separated list of CIDRs or bare addresses.
func prefixListEnv(key string, errs *[]error) []netip.Prefix {
	var out []netip.Prefix
	for _, item := range splitList(os.Getenv(key)) {
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
