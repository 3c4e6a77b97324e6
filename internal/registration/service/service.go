// Package service implements validate-and-register: form cleaning, account
// creation, username derivation, re-authentication, session start and the
// user_registered notification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signup/internal/registration/form"
	regmetrics "signup/internal/registration/metrics"
	"signup/internal/registration/models"
	dErrors "signup/pkg/domain-errors"
	"signup/pkg/platform/audit"
	"signup/pkg/requestcontext"
)

var tracer = otel.Tracer("signup/registration")

const (
	authFailureMessage         = "Your account was created but we could not sign you in. Please log in."
	usernameUnavailableMessage = "We could not pick a username for this account. Please try again."
)

// Config is the deployment's registration policy.
type Config struct {
	// Open gates every registration attempt.
	Open bool
	// RedirectURL overrides the user's profile URL after success.
	RedirectURL string
}

// Deps are the collaborators every Service needs.
type Deps struct {
	Form   *form.Form
	Users  UserStore
	Auth   Authenticator
	Events EventSink
	Hasher PasswordHasher
}

// Service runs the registration workflow.
type Service struct {
	form           *form.Form
	users          UserStore
	auth           Authenticator
	events         EventSink
	hasher         PasswordHasher
	cfg            Config
	tx             StoreTx
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *regmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the unit of work wrapping account creation and username
// generation. Defaults to the user store when it runs its own units of
// work, otherwise to an in-memory runner without rollback.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service. Every Deps field is required.
func New(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	var missing []error
	if deps.Form == nil {
		missing = append(missing, errors.New("form is required"))
	}
	if deps.Users == nil {
		missing = append(missing, errors.New("user store is required"))
	}
	if deps.Auth == nil {
		missing = append(missing, errors.New("authenticator is required"))
	}
	if deps.Events == nil {
		missing = append(missing, errors.New("event sink is required"))
	}
	if deps.Hasher == nil {
		missing = append(missing, errors.New("password hasher is required"))
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	s := &Service{
		form:   deps.Form,
		users:  deps.Users,
		auth:   deps.Auth,
		events: deps.Events,
		hasher: deps.Hasher,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		if tx, ok := deps.Users.(StoreTx); ok {
			s.tx = tx
		} else {
			s.tx = newInMemoryStoreTx()
		}
	}
	return s, nil
}

// RegistrationAllowed reports whether new accounts may be created.
func (s *Service) RegistrationAllowed() bool {
	return s.cfg.Open
}

// Form returns the registration form the service validates against.
func (s *Service) Form() *form.Form {
	return s.form
}

// ValidateAndRegister cleans req and, when it is valid, creates and signs in
// the account. Field problems and a failed re-authentication are reported in
// the result; the error is reserved for closed registration and
// infrastructure failures. Password values in CleanedData are always masked.
func (s *Service) ValidateAndRegister(ctx context.Context, req models.RegistrationRequest) (result *models.ValidationResult, err error) {
	ctx, span := tracer.Start(ctx, "registration.validate_and_register",
		trace.WithAttributes(attribute.String("registration.identifier_field", s.form.IdentifierField())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !s.RegistrationAllowed() {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "registration attempt while closed",
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.incrementAttempt(regmetrics.OutcomeClosed)
		return nil, dErrors.New(dErrors.CodeForbidden, "registration is closed")
	}

	cleaned, fieldErrs, err := s.form.Clean(ctx, req, s.users)
	if err != nil {
		s.incrementAttempt(regmetrics.OutcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate registration")
	}

	result = models.NewValidationResult()
	result.CleanedData = cleaned
	result.Add(fieldErrs...)
	if result.HasErrors() {
		s.recordRejection(ctx, result)
		result.RedactPasswords()
		span.SetAttributes(attribute.Int("registration.field_errors", len(result.Failures)))
		return result, nil
	}

	user, session, err := s.Register(ctx, cleaned)
	switch {
	case err == nil:
		result.Success = true
		result.Session = session
		s.incrementAttempt(regmetrics.OutcomeRegistered)
	case user != nil && dErrors.HasCode(err, dErrors.CodeUnauthorized):
		// The account stays; the client is asked to log in instead.
		result.Add(models.FieldError{
			Field:   models.UserErrors,
			Kind:    models.AuthenticationFailure,
			Message: authFailureMessage,
		})
		s.incrementAttempt(regmetrics.OutcomeAuthFailed)
	case dErrors.HasCode(err, dErrors.CodeConflict):
		// Lost a race with a concurrent registration.
		result.Add(s.conflictFailure(err))
		s.recordRejection(ctx, result)
		result.RedactPasswords()
		return result, nil
	default:
		s.incrementAttempt(regmetrics.OutcomeError)
		return nil, err
	}

	result.User = user
	if result.Success {
		result.RedirectURL = s.successURL(user)
	}
	result.RedactPasswords()
	span.SetAttributes(attribute.String("registration.user_id", user.ID.String()))
	return result, nil
}

// conflictFailure reports a uniqueness conflict raised by the store after
// the form's own checks passed.
func (s *Service) conflictFailure(err error) models.FieldError {
	if errors.Is(err, errUsernameUnavailable) {
		return models.FieldError{
			Field:   models.NonFieldErrors,
			Kind:    models.DuplicateIdentifier,
			Message: usernameUnavailableMessage,
		}
	}

	identifier := s.form.IdentifierField()
	field := identifier
	var conflict *models.ConflictError
	if errors.As(err, &conflict) && conflict.Field != "" {
		field = conflict.Field
	}
	if field == models.FieldUsername && identifier != models.FieldUsername {
		return models.FieldError{
			Field:   models.FieldUsername,
			Kind:    models.DuplicateIdentifier,
			Message: "A user with that username already exists.",
		}
	}
	return models.FieldError{
		Field:   field,
		Kind:    models.DuplicateIdentifier,
		Message: fmt.Sprintf("This %s is already in use.", field),
	}
}

func (s *Service) successURL(user *models.User) string {
	if s.cfg.RedirectURL != "" {
		return s.cfg.RedirectURL
	}
	return user.AbsoluteURL()
}

func (s *Service) recordRejection(ctx context.Context, result *models.ValidationResult) {
	s.incrementAttempt(regmetrics.OutcomeInvalid)
	fields := make([]string, 0, len(result.Failures))
	for _, fe := range result.Failures {
		fields = append(fields, fe.Field)
		if s.metrics != nil {
			s.metrics.IncrementFieldError(fe.Field, string(fe.Kind))
		}
	}
	_ = s.logAudit(ctx, audit.EventRegistrationRejected, "reason", strings.Join(fields, ","))
}

func (s *Service) incrementAttempt(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementAttempt(outcome)
	}
}
