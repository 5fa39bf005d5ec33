package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
)

const refreshTokenType = "refresh"

// AccessTokenClaims carries the principal for API calls.
type AccessTokenClaims struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	Type      string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims identifies the session a refresh token belongs to.
type RefreshTokenClaims struct {
	UserID    string `json:"id"`
	SessionID string `json:"sid"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// Subject is what goes into an access token.
type Subject struct {
	UserID    id.UserID
	Email     string
	Name      string
	Role      id.Role
	SessionID id.SessionID
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

func (s *JWTService) registered(subject string, expiresIn time.Duration) (jwt.RegisteredClaims, time.Time) {
	now := s.now()
	exp := now.Add(expiresIn)
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		ID:        uuid.NewString(),
	}, exp
}

// GenerateAccessToken returns the signed token and its expiry.
func (s *JWTService) GenerateAccessToken(sub Subject, expiresIn time.Duration) (string, time.Time, error) {
	rc, exp := s.registered(sub.UserID.String(), expiresIn)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID:           sub.UserID.String(),
		Email:            sub.Email,
		Name:             sub.Name,
		Role:             string(sub.Role),
		SessionID:        sub.SessionID.String(),
		RegisteredClaims: rc,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// GenerateRefreshToken returns the signed token and its expiry. Every token
// carries a fresh jti, so two tokens for one session never collide.
func (s *JWTService) GenerateRefreshToken(userID id.UserID, sessionID id.SessionID, expiresIn time.Duration) (string, time.Time, error) {
	rc, exp := s.registered(userID.String(), expiresIn)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshTokenClaims{
		UserID:           userID.String(),
		SessionID:        sessionID.String(),
		Type:             refreshTokenType,
		RegisteredClaims: rc,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return nil
}

// ValidateAccessToken rejects refresh tokens presented as access tokens.
func (s *JWTService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token type")
	}
	return claims, nil
}

// ValidateRefreshToken requires typ=refresh.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*RefreshTokenClaims, error) {
	claims := &RefreshTokenClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != refreshTokenType {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token type")
	}
	return claims, nil
}
