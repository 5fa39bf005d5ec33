// Package logstore writes audit events as structured log lines.
package logstore

import (
	"context"
	"log/slog"

	audit "quill/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	attrs := []any{
		"log_type", "audit",
		"event", event.Action,
		"category", string(event.Category),
		"timestamp", event.Timestamp,
	}
	if !event.UserID.IsNil() {
		attrs = append(attrs, "user_id", event.UserID.String())
	}
	if event.Subject != "" {
		attrs = append(attrs, "subject", event.Subject)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if event.ClientIP != "" {
		attrs = append(attrs, "client_ip", event.ClientIP)
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	s.logger.InfoContext(ctx, event.Action, attrs...)
	return nil
}
