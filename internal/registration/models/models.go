// Package models holds the registration aggregate: the user record, the raw
// request, the validation result and the user_registered event payload.
package models

import (
	"fmt"
	"strings"
	"time"

	authmodels "signup/internal/auth/models"
	id "signup/pkg/domain"
	"signup/pkg/platform/sentinel"
)

// Field names understood by the built-in user entity.
const (
	FieldUsername  = "username"
	FieldEmail     = "email"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldPassword1 = "password1"
	FieldPassword2 = "password2"

	// NonFieldErrors keys errors that belong to the form as a whole.
	NonFieldErrors = "__all__"
	// UserErrors keys the re-authentication failure after account creation.
	UserErrors = "user"
)

// ConflictError is returned by user stores when a write collides with an
// existing value of a unique field. It matches sentinel.ErrAlreadyUsed.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return sentinel.ErrAlreadyUsed.Error()
	}
	return e.Field + " " + sentinel.ErrAlreadyUsed.Error()
}

func (e *ConflictError) Unwrap() error {
	return sentinel.ErrAlreadyUsed
}

// User is the persisted account. ID is assigned by the store on Create.
type User struct {
	ID           id.UserID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	DateJoined   time.Time
	Extra        map[string]any
}

// Identifier returns the value of the named identifier field.
func (u *User) Identifier(field string) string {
	switch field {
	case FieldUsername:
		return u.Username
	case FieldEmail:
		return u.Email
	case FieldFirstName:
		return u.FirstName
	case FieldLastName:
		return u.LastName
	}
	if v, ok := u.Extra[field].(string); ok {
		return v
	}
	return ""
}

// AbsoluteURL is the canonical location of the user's profile.
func (u *User) AbsoluteURL() string {
	return fmt.Sprintf("/users/%s/", u.ID)
}

// RegistrationRequest maps raw field names to submitted values.
type RegistrationRequest map[string]string

// ErrorKind classifies a registration failure.
type ErrorKind string

const (
	MissingField          ErrorKind = "missing_field"
	FieldValidationError  ErrorKind = "field_validation_error"
	DuplicateIdentifier   ErrorKind = "duplicate_identifier"
	AuthenticationFailure ErrorKind = "authentication_failure"
)

// FieldError is one message attached to a field, or to NonFieldErrors.
type FieldError struct {
	Field   string
	Kind    ErrorKind
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationResult is returned by every registration attempt.
type ValidationResult struct {
	Errors      map[string][]string `json:"errors,omitempty"`
	CleanedData map[string]any      `json:"cleaned_data"`
	Success     bool                `json:"success"`
	RedirectURL string              `json:"redirect_url,omitempty"`

	Failures []FieldError        `json:"-"`
	User     *User               `json:"-"`
	Session  *authmodels.Session `json:"-"`
}

// NewValidationResult returns an empty, unsuccessful result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Errors:      map[string][]string{},
		CleanedData: map[string]any{},
	}
}

// Add records a failure under its field.
func (r *ValidationResult) Add(errs ...FieldError) {
	for _, fe := range errs {
		r.Failures = append(r.Failures, fe)
		r.Errors[fe.Field] = append(r.Errors[fe.Field], fe.Message)
	}
}

func (r *ValidationResult) HasErrors() bool {
	return len(r.Failures) > 0
}

// HasKind reports whether field failed with kind.
func (r *ValidationResult) HasKind(field string, kind ErrorKind) bool {
	for _, fe := range r.Failures {
		if fe.Field == field && fe.Kind == kind {
			return true
		}
	}
	return false
}

// RedactPasswords masks every character of each cleaned value whose key
// contains "password".
func (r *ValidationResult) RedactPasswords() {
	for key, value := range r.CleanedData {
		if !IsPasswordKey(key) {
			continue
		}
		r.CleanedData[key] = Mask(value)
	}
}

// IsPasswordKey reports whether key names a password value.
func IsPasswordKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "password")
}

// Mask replaces each character of the value's string form with '*'.
func Mask(value any) string {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case nil:
		s = ""
	default:
		s = fmt.Sprint(v)
	}
	return strings.Repeat("*", len([]rune(s)))
}

// EventUserRegistered is the notification name published after a
// successful registration.
const EventUserRegistered = "user_registered"

// UserRegistered is the payload of EventUserRegistered.
type UserRegistered struct {
	UserID          id.UserID `json:"user_id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	IdentifierField string    `json:"identifier_field"`
	Identifier      string    `json:"identifier"`
	SessionID       string    `json:"session_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	RequestID       string    `json:"request_id,omitempty"`
}
