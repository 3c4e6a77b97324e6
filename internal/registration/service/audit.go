package service

import (
	"context"

	"signup/pkg/attrs"
	"signup/pkg/platform/audit"
	"signup/pkg/requestcontext"
)

// logAudit writes an audit log line and forwards the event to the audit
// publisher. Only compliance events can fail; see audit/publisher.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) error {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	userID := attrs.UserID(attributes, "user_id")
	return s.auditPublisher.Emit(ctx, audit.Event{
		UserID:  userID,
		Subject: attrs.String(attributes, "subject"),
		Action:  string(event),
		Reason:  attrs.String(attributes, "reason"),
		Email:   attrs.String(attributes, "email"),
	})
}
