package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	authmodels "signup/internal/auth/models"
	"signup/internal/registration/models"
	dErrors "signup/pkg/domain-errors"
	"signup/pkg/email"
	"signup/pkg/platform/audit"
	"signup/pkg/platform/sentinel"
	"signup/pkg/requestcontext"
)

// Register creates the account described by cleaned form data, signs it in
// and publishes user_registered.
//
// When re-authentication fails the created user is returned together with a
// CodeUnauthorized error. The account is not rolled back.
func (s *Service) Register(ctx context.Context, cleaned map[string]any) (user *models.User, session *authmodels.Session, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "registration.register")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveRegister(start)
		}
	}()

	password, _ := cleaned[models.FieldPassword1].(string)
	if password == "" {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "password is required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	identifierField := s.form.IdentifierField()
	created := s.newUser(ctx, cleaned, hash)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, created); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "account is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		if created.Username == "" {
			if _, err := s.GenerateUsername(txCtx, created); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("registration.user_id", created.ID.String()))

	identifier := created.Identifier(identifierField)
	if _, err := s.auth.Verify(ctx, identifierField, identifier, password); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "re-authentication failed after registration",
				"user_id", created.ID.String(),
				"error", err,
			)
		}
		_ = s.logAudit(ctx, audit.EventAuthFailed,
			"user_id", created.ID,
			"subject", identifier,
			"reason", "reauthentication_failed",
		)
		return created, nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "authentication failed after registration")
	}

	session, err = s.auth.StartSession(ctx, created)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start session")
	}
	_ = s.logAudit(ctx, audit.EventSessionCreated,
		"user_id", created.ID,
		"subject", session.ID.String(),
	)

	s.publishRegistered(ctx, created, session)
	return created, session, nil
}

// errUsernameUnavailable marks a conflict on every generated username
// candidate, as opposed to a conflict on the submitted identifier.
var errUsernameUnavailable = errors.New("no generated username is available")

// GenerateUsername derives a username from the user's email address by
// replacing "@" and "." with "_". A name that is already taken, or is
// claimed concurrently, gets "_<id>" appended. The result is persisted and
// set on user.
func (s *Service) GenerateUsername(ctx context.Context, user *models.User) (string, error) {
	if user.Email == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "email is required to generate a username")
	}
	if user.ID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "user must be stored before generating a username")
	}

	base := email.UsernameFromEmail(user.Email)
	suffixed := fmt.Sprintf("%s_%s", base, user.ID)
	candidates := []string{base, suffixed}
	taken, err := s.users.Exists(ctx, models.FieldUsername, base)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	if taken {
		candidates = candidates[1:]
	}

	var username string
	for _, candidate := range candidates {
		err := s.users.SetUsername(ctx, user.ID, candidate)
		if err == nil {
			username = candidate
			break
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store username")
		}
		if candidate == suffixed {
			return "", dErrors.Wrap(errors.Join(errUsernameUnavailable, err), dErrors.CodeConflict, "generated username is already in use")
		}
	}
	user.Username = username

	if s.metrics != nil {
		s.metrics.IncrementUsernameGenerated()
	}
	if err := s.logAudit(ctx, audit.EventUsernameGenerated,
		"user_id", user.ID,
		"subject", username,
		"email", user.Email,
	); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record username generation")
	}
	return username, nil
}

// newUser maps the cleaned user fields onto a User. Declared fields the
// entity has no column for go to Extra.
func (s *Service) newUser(ctx context.Context, cleaned map[string]any, passwordHash string) *models.User {
	user := &models.User{
		PasswordHash: passwordHash,
		IsActive:     true,
		DateJoined:   requestcontext.Now(ctx),
	}
	for _, name := range s.form.UserFields() {
		value, ok := cleaned[name]
		if !ok {
			continue
		}
		str, _ := value.(string)
		switch name {
		case models.FieldUsername:
			user.Username = str
		case models.FieldEmail:
			user.Email = email.Normalize(str)
		case models.FieldFirstName:
			user.FirstName = str
		case models.FieldLastName:
			user.LastName = str
		default:
			if value == "" {
				continue
			}
			if user.Extra == nil {
				user.Extra = map[string]any{}
			}
			user.Extra[name] = value
		}
	}
	return user
}

func (s *Service) publishRegistered(ctx context.Context, user *models.User, session *authmodels.Session) {
	identifierField := s.form.IdentifierField()
	payload := models.UserRegistered{
		UserID:          user.ID,
		Username:        user.Username,
		Email:           user.Email,
		IdentifierField: identifierField,
		Identifier:      user.Identifier(identifierField),
		OccurredAt:      requestcontext.Now(ctx),
		RequestID:       requestcontext.RequestID(ctx),
	}
	if session != nil {
		payload.SessionID = session.ID.String()
	}

	if err := s.events.Publish(ctx, models.EventUserRegistered, payload); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementPublishFailure()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to publish user_registered",
				"user_id", user.ID.String(),
				"error", err,
			)
		}
	}
}
