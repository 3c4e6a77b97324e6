// Package service authenticates freshly registered users and starts their
// first session.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"signup/internal/auth/device"
	"signup/internal/auth/models"
	regmodels "signup/internal/registration/models"
	id "signup/pkg/domain"
	dErrors "signup/pkg/domain-errors"
	"signup/pkg/platform/sentinel"
	"signup/pkg/requestcontext"
)

const defaultSessionTTL = 24 * time.Hour

type UserStore interface {
	FindByIdentifier(ctx context.Context, field, value string) (*regmodels.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, sessionID id.SessionID, issuedAt, expiresAt time.Time) (string, error)
}

type PasswordChecker interface {
	Compare(hash, password string) (bool, error)
}

// Service implements the registration Authenticator.
type Service struct {
	users      UserStore
	sessions   SessionStore
	tokens     TokenIssuer
	passwords  PasswordChecker
	devices    *device.Service
	sessionTTL time.Duration
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithDeviceService sets how sessions are labelled. Defaults to display
// names without fingerprints.
func WithDeviceService(devices *device.Service) Option {
	return func(s *Service) {
		if devices != nil {
			s.devices = devices
		}
	}
}

func New(users UserStore, sessions SessionStore, tokens TokenIssuer, passwords PasswordChecker, opts ...Option) (*Service, error) {
	if users == nil || sessions == nil || tokens == nil || passwords == nil {
		return nil, errors.New("auth service: user store, session store, token issuer and password checker are required")
	}
	s := &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		passwords:  passwords,
		devices:    device.NewService(false),
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func invalidCredentials() error {
	return dErrors.Wrap(sentinel.ErrUnauthorized, dErrors.CodeUnauthorized, "invalid credentials")
}

// Verify looks the user up by identifierField and checks password against
// the stored hash. Every failure to authenticate is CodeUnauthorized.
func (s *Service) Verify(ctx context.Context, identifierField, identifier, password string) (*regmodels.User, error) {
	user, err := s.users.FindByIdentifier(ctx, identifierField, identifier)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsActive {
		return nil, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeUnauthorized, "account is inactive")
	}

	ok, err := s.passwords.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check password")
	}
	if !ok {
		return nil, invalidCredentials()
	}
	return user, nil
}

// StartSession persists a session for user, labelled from the request's
// client metadata, and issues an access token bound to it.
func (s *Service) StartSession(ctx context.Context, user *regmodels.User) (*models.Session, error) {
	if user == nil || user.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user is required")
	}
	now := requestcontext.Now(ctx)
	userAgent := requestcontext.UserAgent(ctx)
	displayName, fingerprint := s.devices.Describe(userAgent)

	session := &models.Session{
		ID:                id.NewSessionID(),
		UserID:            user.ID,
		DeviceDisplayName: displayName,
		DeviceFingerprint: fingerprint,
		ClientIP:          requestcontext.ClientIP(ctx),
		UserAgent:         userAgent,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store session")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, session.ID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	session.AccessToken = token

	if s.logger != nil {
		s.logger.InfoContext(ctx, "session started",
			"user_id", user.ID.String(),
			"session_id", session.ID.String(),
			"device", displayName,
		)
	}
	return session, nil
}
