package testutil

import (
	"net/http"

	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	authmw "quill/pkg/platform/middleware/auth"
)

// StaticValidator accepts only the tokens it was given.
type StaticValidator map[string]*authmw.Claims

func (v StaticValidator) ValidateAccessToken(token string) (*authmw.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

// Issue registers a token for userID with role and returns it.
func (v StaticValidator) Issue(userID id.UserID, role id.Role) string {
	token := "token-" + userID.String()
	v[token] = &authmw.Claims{UserID: userID, Role: role, SessionID: id.NewSessionID()}
	return token
}

// WithAccessToken sets the access token cookie on req.
func WithAccessToken(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: authmw.AccessTokenCookie, Value: token})
	return req
}
