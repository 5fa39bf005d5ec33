package testutil

import (
	"net/http"

	id "quill/pkg/domain"
	"quill/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated user to the request the way the
// auth middleware does.
func WithPrincipal(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	return WithSession(req, userID, role, id.NewSessionID())
}

// WithSession is WithPrincipal with an explicit session id.
func WithSession(req *http.Request, userID id.UserID, role id.Role, sessionID id.SessionID) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), userID, string(role), sessionID)
	return req.WithContext(ctx)
}

// WithClient attaches client ip and user agent as the metadata middleware does.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
