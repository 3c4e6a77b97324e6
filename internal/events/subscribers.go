package events

import (
	"context"
	"fmt"
	"log/slog"

	"signup/internal/registration/models"
	"signup/pkg/platform/audit"
	"signup/pkg/requestcontext"
)

// LogSubscriber writes every event it receives to a structured log.
type LogSubscriber struct {
	logger *slog.Logger
}

func NewLogSubscriber(logger *slog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger}
}

func (l *LogSubscriber) Name() string { return "log" }

func (l *LogSubscriber) Handle(ctx context.Context, event string, payload any) error {
	attrs := []any{"event", event, "request_id", requestcontext.RequestID(ctx)}
	if reg, ok := asUserRegistered(payload); ok {
		attrs = append(attrs,
			"user_id", reg.UserID.String(),
			"identifier_field", reg.IdentifierField,
		)
	}
	l.logger.InfoContext(ctx, "event published", attrs...)
	return nil
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditSubscriber records each registration as a compliance audit event.
type AuditSubscriber struct {
	publisher AuditPublisher
}

func NewAuditSubscriber(publisher AuditPublisher) *AuditSubscriber {
	return &AuditSubscriber{publisher: publisher}
}

func (a *AuditSubscriber) Name() string { return "audit" }

func (a *AuditSubscriber) Handle(ctx context.Context, event string, payload any) error {
	reg, ok := asUserRegistered(payload)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", event, payload)
	}
	return a.publisher.Emit(ctx, audit.Event{
		UserID:    reg.UserID,
		Subject:   reg.Identifier,
		Action:    string(audit.EventUserRegistered),
		Email:     reg.Email,
		Timestamp: reg.OccurredAt,
		RequestID: reg.RequestID,
	})
}

func asUserRegistered(payload any) (models.UserRegistered, bool) {
	switch p := payload.(type) {
	case models.UserRegistered:
		return p, true
	case *models.UserRegistered:
		if p != nil {
			return *p, true
		}
	}
	return models.UserRegistered{}, false
}
