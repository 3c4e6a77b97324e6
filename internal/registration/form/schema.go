// Package form builds the registration form from a statically declared
// field table and cleans submitted values against it.
package form

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"signup/internal/registration/models"
	dErrors "signup/pkg/domain-errors"
	pstrings "signup/pkg/platform/strings"
)

// Kind selects the validator and widget used for a field.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindPassword Kind = "password"
	KindBoolean  Kind = "boolean"
	// KindHTML renders static markup. It is never required and always
	// cleans to the empty string.
	KindHTML Kind = "html"
)

// FieldDescriptor declares one attribute of the user entity.
type FieldDescriptor struct {
	Name      string `koanf:"name" validate:"required,fieldname"`
	Label     string `koanf:"label"`
	Kind      Kind   `koanf:"kind" validate:"required,oneof=text email password boolean html"`
	Required  bool   `koanf:"required"`
	MinLength int    `koanf:"min_length" validate:"gte=0"`
	MaxLength int    `koanf:"max_length" validate:"gte=0"`
	Pattern   string `koanf:"pattern"`
	HTML      string `koanf:"html"`
}

// DisplayLabel is the label, or the name with underscores as spaces.
func (d FieldDescriptor) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return strings.ReplaceAll(d.Name, "_", " ")
}

// Schema is the per-deployment field table. Empty FormFields and
// RequiredFields default to the identifier plus every Required descriptor.
type Schema struct {
	IdentifierField   string            `koanf:"identifier_field" validate:"required"`
	UserFields        []FieldDescriptor `koanf:"fields" validate:"required,min=1,dive"`
	FormFields        []string          `koanf:"form_fields"`
	RequiredFields    []string          `koanf:"required_fields"`
	PasswordMinLength int               `koanf:"password_min_length" validate:"gte=0"`
}

var (
	fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	reservedNames    = []string{
		models.FieldPassword1, models.FieldPassword2, fieldTOS,
		models.NonFieldErrors, models.UserErrors,
	}
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fieldname", func(fl validator.FieldLevel) bool {
		return fieldNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// DefaultSchema mirrors the stock user entity: username is the identifier,
// email is its other required field.
func DefaultSchema() Schema {
	return Schema{
		IdentifierField: models.FieldUsername,
		UserFields: []FieldDescriptor{
			{Name: models.FieldUsername, Label: "username", Kind: KindText, Required: true, MaxLength: 150, Pattern: `^[\w.@+-]+$`},
			{Name: models.FieldEmail, Label: "email address", Kind: KindEmail, Required: true, MaxLength: 254},
			{Name: models.FieldFirstName, Label: "first name", Kind: KindText, MaxLength: 150},
			{Name: models.FieldLastName, Label: "last name", Kind: KindText, MaxLength: 150},
		},
	}
}

// WithSettings applies deployment overrides. Empty values keep what the
// schema already declares.
func (s Schema) WithSettings(identifier string, formFields, requiredFields []string) Schema {
	if identifier != "" {
		s.IdentifierField = identifier
	}
	if len(formFields) > 0 {
		s.FormFields = append([]string(nil), formFields...)
	}
	if len(requiredFields) > 0 {
		s.RequiredFields = append([]string(nil), requiredFields...)
	}
	return s
}

// Descriptor looks up a declared field.
func (s Schema) Descriptor(name string) (FieldDescriptor, bool) {
	for _, d := range s.UserFields {
		if d.Name == name {
			return d, true
		}
	}
	return FieldDescriptor{}, false
}

func (s Schema) defaultFieldSet() []string {
	names := []string{s.IdentifierField}
	for _, d := range s.UserFields {
		if d.Required {
			names = append(names, d.Name)
		}
	}
	return pstrings.DedupeAndTrim(names)
}

// EffectiveFormFields is the ordered set of user fields shown on the form.
func (s Schema) EffectiveFormFields() []string {
	if len(s.FormFields) > 0 {
		return pstrings.DedupeAndTrim(s.FormFields)
	}
	return s.defaultFieldSet()
}

// EffectiveRequiredFields is the set of user fields that must be non-empty.
func (s Schema) EffectiveRequiredFields() []string {
	if len(s.RequiredFields) > 0 {
		return pstrings.DedupeAndTrim(s.RequiredFields)
	}
	return s.defaultFieldSet()
}

// Validate checks the table once at start-up. Every problem is reported.
func (s Schema) Validate() error {
	var errs []error
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	seen := map[string]bool{}
	for _, d := range s.UserFields {
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("field %q declared twice", d.Name))
		}
		seen[d.Name] = true
		if pstrings.ContainsFold(reservedNames, d.Name) {
			errs = append(errs, fmt.Errorf("field name %q is reserved", d.Name))
		}
		if d.MaxLength > 0 && d.MinLength > d.MaxLength {
			errs = append(errs, fmt.Errorf("field %q: min_length exceeds max_length", d.Name))
		}
		if d.Pattern != "" {
			if _, err := regexp.Compile(d.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("field %q: invalid pattern: %w", d.Name, err))
			}
		}
		if d.Kind == KindHTML && d.Required {
			errs = append(errs, fmt.Errorf("field %q: html fields cannot be required", d.Name))
		}
	}

	ident, ok := s.Descriptor(s.IdentifierField)
	switch {
	case s.IdentifierField == "":
	case !ok:
		errs = append(errs, fmt.Errorf("identifier field %q is not declared", s.IdentifierField))
	case ident.Kind != KindText && ident.Kind != KindEmail:
		errs = append(errs, fmt.Errorf("identifier field %q must be text or email, got %s", s.IdentifierField, ident.Kind))
	}

	formFields := s.EffectiveFormFields()
	required := s.EffectiveRequiredFields()
	for _, name := range pstrings.Missing(formFields, declaredNames(s.UserFields)) {
		errs = append(errs, fmt.Errorf("form field %q is not declared", name))
	}
	for _, name := range pstrings.Missing(required, formFields) {
		errs = append(errs, fmt.Errorf("required field %q is not on the form", name))
	}
	if s.IdentifierField != "" && !slices.Contains(formFields, s.IdentifierField) {
		errs = append(errs, fmt.Errorf("identifier field %q is not on the form", s.IdentifierField))
	}
	if _, hasUsername := s.Descriptor(models.FieldUsername); hasUsername && !slices.Contains(required, models.FieldUsername) {
		// Blank usernames are generated from the email address.
		if !slices.Contains(required, models.FieldEmail) {
			errs = append(errs, errors.New("email must be required when username is optional"))
		}
	}

	if len(errs) > 0 {
		return dErrors.Wrap(errors.Join(errs...), dErrors.CodeInvariantViolation, "invalid registration schema")
	}
	return nil
}

func declaredNames(fields []FieldDescriptor) []string {
	names := make([]string, 0, len(fields))
	for _, d := range fields {
		names = append(names, d.Name)
	}
	return names
}
