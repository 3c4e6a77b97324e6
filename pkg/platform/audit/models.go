package audit

import (
	"context"
	"time"

	id "signup/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance such as
	// account creation. Long retention, never sampled.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events for security monitoring: failed
	// re-authentication, throttled or refused registrations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        id.EventID
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	Email     string
	RequestID string
	ClientIP  string
}

type AuditEvent string

const (
	EventUserRegistered       AuditEvent = "user_registered"
	EventUsernameGenerated    AuditEvent = "username_generated"
	EventRegistrationRejected AuditEvent = "registration_rejected"
	EventRegistrationLimited  AuditEvent = "registration_rate_limited"
	EventAuthFailed           AuditEvent = "auth_failed"
	EventSessionCreated       AuditEvent = "session_created"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered:    CategoryCompliance,
	EventUsernameGenerated: CategoryCompliance,

	EventAuthFailed:          CategorySecurity,
	EventRegistrationLimited: CategorySecurity,

	EventRegistrationRejected: CategoryOperations,
	EventSessionCreated:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
