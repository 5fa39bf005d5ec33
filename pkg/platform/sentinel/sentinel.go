package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors:
//   - ErrNotFound: row does not exist
//   - ErrConflict: a unique key (email, slug, name) is already taken
//   - ErrExpired: session or token is past its expiry
//   - ErrInUse: row is still referenced and cannot be removed
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrInUse       = errors.New("in use")
	ErrUnavailable = errors.New("unavailable")
)
