// Package domain holds identifier types shared across modules.
//
// Each entity gets its own UUID-backed type so a PostID cannot be passed where
// a UserID is expected. The types implement driver.Valuer and sql.Scanner so
// stores can bind and scan them directly.
package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"

	dErrors "quill/pkg/domain-errors"
)

type (
	UserID     uuid.UUID
	SessionID  uuid.UUID
	PostID     uuid.UUID
	CategoryID uuid.UUID
	TagID      uuid.UUID
)

func NewUserID() UserID         { return UserID(uuid.New()) }
func NewSessionID() SessionID   { return SessionID(uuid.New()) }
func NewPostID() PostID         { return PostID(uuid.New()) }
func NewCategoryID() CategoryID { return CategoryID(uuid.New()) }
func NewTagID() TagID           { return TagID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func ParsePostID(s string) (PostID, error) {
	u, err := parseUUID(s, "post id")
	return PostID(u), err
}

func ParseCategoryID(s string) (CategoryID, error) {
	u, err := parseUUID(s, "category id")
	return CategoryID(u), err
}

func ParseTagID(s string) (TagID, error) {
	u, err := parseUUID(s, "tag id")
	return TagID(u), err
}

// parseUUID enforces that identifiers arriving at a trust boundary are
// well-formed and not the nil UUID.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	return u, nil
}

func scanUUID(dst *uuid.UUID, src any) error {
	if src == nil {
		*dst = uuid.Nil
		return nil
	}
	if err := dst.Scan(src); err != nil {
		return fmt.Errorf("scan id: %w", err)
	}
	return nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}
func (id *UserID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}
func (id *SessionID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id SessionID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *SessionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id PostID) String() string { return uuid.UUID(id).String() }
func (id PostID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PostID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}
func (id *PostID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id PostID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *PostID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id CategoryID) String() string { return uuid.UUID(id).String() }
func (id CategoryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CategoryID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}
func (id *CategoryID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id CategoryID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *CategoryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id TagID) String() string { return uuid.UUID(id).String() }
func (id TagID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TagID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}
func (id *TagID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id TagID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *TagID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
