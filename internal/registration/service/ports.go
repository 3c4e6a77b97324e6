package service

import (
	"context"

	authmodels "signup/internal/auth/models"
	"signup/internal/registration/models"
	id "signup/pkg/domain"
	"signup/pkg/platform/audit"
)

// UserStore persists accounts. Exists and FindByIdentifier match values
// case-insensitively. Create assigns the user's ID.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Exists(ctx context.Context, field, value string) (bool, error)
	FindByIdentifier(ctx context.Context, field, value string) (*models.User, error)
	SetUsername(ctx context.Context, userID id.UserID, username string) error
}

// Authenticator re-checks the submitted credentials against the stored
// account and signs the user in.
type Authenticator interface {
	Verify(ctx context.Context, identifierField, identifier, password string) (*models.User, error)
	StartSession(ctx context.Context, user *models.User) (*authmodels.Session, error)
}

// EventSink receives domain notifications.
type EventSink interface {
	Publish(ctx context.Context, name string, payload any) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// StoreTx runs fn as one unit of work. Stores reached through the callback
// context join the transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
