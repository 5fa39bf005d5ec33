package jwttoken

import (
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	authmw "quill/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims parses the string claims into typed ids.
func ToMiddlewareClaims(claims *AccessTokenClaims) (*authmw.Claims, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token session")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	return &authmw.Claims{UserID: userID, Role: role, SessionID: sessionID}, nil
}

// JWTServiceAdapter lets the auth middleware validate access tokens.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateAccessToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
