package audit

import (
	"context"
	"time"

	id "quill/pkg/domain"
)

// EventCategory classifies audit events so sinks can route or retain them differently.
type EventCategory string

const (
	// CategorySecurity covers authentication outcomes, lockouts and session changes.
	CategorySecurity EventCategory = "security"
	// CategoryAccount covers user lifecycle.
	CategoryAccount EventCategory = "account"
	// CategoryContent covers editorial changes to posts, categories and tags.
	CategoryContent EventCategory = "content"
)

// Event is emitted from services to capture key actions. It stays
// transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id,omitzero"`
	Subject   string        `json:"subject,omitempty"`
	Action    string        `json:"action"`
	Reason    string        `json:"reason,omitempty"`
	ClientIP  string        `json:"client_ip,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventUserCreated      AuditEvent = "user_created"
	EventLoginSucceeded   AuditEvent = "login_succeeded"
	EventAuthFailed       AuditEvent = "auth_failed"
	EventLockoutTriggered AuditEvent = "auth_lockout_triggered"
	EventSessionCreated   AuditEvent = "session_created"
	EventSessionRevoked   AuditEvent = "session_revoked"
	EventTokenRefreshed   AuditEvent = "token_refreshed"

	EventPostCreated     AuditEvent = "post_created"
	EventPostUpdated     AuditEvent = "post_updated"
	EventPostDeleted     AuditEvent = "post_deleted"
	EventPostPublished   AuditEvent = "post_published"
	EventPostScheduled   AuditEvent = "post_scheduled"
	EventCategoryCreated AuditEvent = "category_created"
	EventCategoryUpdated AuditEvent = "category_updated"
	EventCategoryDeleted AuditEvent = "category_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserCreated: CategoryAccount,

	EventLoginSucceeded:   CategorySecurity,
	EventAuthFailed:       CategorySecurity,
	EventLockoutTriggered: CategorySecurity,
	EventSessionCreated:   CategorySecurity,
	EventSessionRevoked:   CategorySecurity,
	EventTokenRefreshed:   CategorySecurity,

	EventPostCreated:     CategoryContent,
	EventPostUpdated:     CategoryContent,
	EventPostDeleted:     CategoryContent,
	EventPostPublished:   CategoryContent,
	EventPostScheduled:   CategoryContent,
	EventCategoryCreated: CategoryContent,
	EventCategoryUpdated: CategoryContent,
	EventCategoryDeleted: CategoryContent,
}

// Category returns the category for a known event, CategoryContent otherwise.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryContent
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the port services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// NopEmitter discards events.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) error { return nil }
