package form

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"signup/internal/registration/models"
)

// Lookup answers case-insensitive existence queries against stored users.
type Lookup interface {
	Exists(ctx context.Context, field, value string) (bool, error)
}

// Check is a per-field validator added by a variant. A non-empty message
// rejects the value.
type Check func(ctx context.Context, value string, lookup Lookup) (string, error)

type field struct {
	FieldDescriptor
	required        bool
	requiredMessage string
	pattern         *regexp.Regexp
	checks          []Check
}

// Form is an immutable, validated registration form.
type Form struct {
	identifier string
	fields     []*field
	byName     map[string]*field
	userFields []string
	variants   []string
}

var errNoLookup = errors.New("form: lookup is required")

// New validates schema and builds the form: the configured user fields in
// order, the two password fields, then anything the variants add.
func New(schema Schema, variants ...Variant) (*Form, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	f := &Form{identifier: schema.IdentifierField, byName: map[string]*field{}}
	required := schema.EffectiveRequiredFields()
	for _, name := range schema.EffectiveFormFields() {
		d, _ := schema.Descriptor(name)
		fld := &field{FieldDescriptor: d, required: slices.Contains(required, name)}
		if d.Pattern != "" {
			fld.pattern = regexp.MustCompile(d.Pattern)
		}
		f.addField(fld)
		f.userFields = append(f.userFields, name)
	}

	f.addField(&field{
		FieldDescriptor: FieldDescriptor{Name: models.FieldPassword1, Label: "Password", Kind: KindPassword, Required: true, MinLength: schema.PasswordMinLength},
		required:        true,
	})
	f.addField(&field{
		FieldDescriptor: FieldDescriptor{Name: models.FieldPassword2, Label: "Password (again)", Kind: KindPassword, Required: true},
		required:        true,
	})

	for _, v := range variants {
		if err := v.apply(f); err != nil {
			return nil, fmt.Errorf("apply form variant %s: %w", v.Name(), err)
		}
		f.variants = append(f.variants, v.Name())
	}
	return f, nil
}

func (f *Form) addField(fld *field) {
	f.fields = append(f.fields, fld)
	f.byName[fld.Name] = fld
}

func (f *Form) addCheck(name string, check Check) error {
	fld, ok := f.byName[name]
	if !ok {
		return fmt.Errorf("field %q is not on the form", name)
	}
	fld.checks = append(fld.checks, check)
	return nil
}

// IdentifierField names the field used to log in.
func (f *Form) IdentifierField() string { return f.identifier }

// UserFields lists the form fields that map onto the user entity, in
// render order. Passwords and variant fields are not included.
func (f *Form) UserFields() []string {
	return append([]string(nil), f.userFields...)
}

// HasField reports whether name is rendered on the form.
func (f *Form) HasField(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Clean validates raw input. Field errors are returned, not raised; the
// error result is reserved for lookup failures.
//
// Every field is checked before returning. Form-level checks (password
// confirmation, identifier and username uniqueness) run only when all
// fields passed. Keys that are not form fields pass through with
// boolean-like strings normalized, except password-named keys, which keep
// their raw text so redaction masks what was sent.
func (f *Form) Clean(ctx context.Context, raw models.RegistrationRequest, lookup Lookup) (map[string]any, []models.FieldError, error) {
	if lookup == nil {
		return nil, nil, errNoLookup
	}

	cleaned := make(map[string]any, len(raw)+len(f.fields))
	for name, value := range raw {
		if _, declared := f.byName[name]; declared {
			continue
		}
		if models.IsPasswordKey(name) {
			cleaned[name] = value
			continue
		}
		cleaned[name] = normalizeBoolLike(value)
	}

	var errs []models.FieldError
	for _, fld := range f.fields {
		value, fieldErrs, err := fld.clean(ctx, raw[fld.Name], lookup)
		if err != nil {
			return nil, nil, err
		}
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		cleaned[fld.Name] = value
	}
	if len(errs) > 0 {
		return cleaned, errs, nil
	}

	formErrs, err := f.cleanForm(ctx, cleaned, lookup)
	if err != nil {
		return nil, nil, err
	}
	return cleaned, formErrs, nil
}

func (f *Form) cleanForm(ctx context.Context, cleaned map[string]any, lookup Lookup) ([]models.FieldError, error) {
	var errs []models.FieldError
	if cleaned[models.FieldPassword1] != cleaned[models.FieldPassword2] {
		errs = append(errs, models.FieldError{
			Field:   models.NonFieldErrors,
			Kind:    models.FieldValidationError,
			Message: "The two password fields didn't match.",
		})
	}

	if value, _ := cleaned[f.identifier].(string); value != "" {
		exists, err := lookup.Exists(ctx, f.identifier, value)
		if err != nil {
			return nil, err
		}
		if exists {
			errs = append(errs, models.FieldError{
				Field:   f.identifier,
				Kind:    models.DuplicateIdentifier,
				Message: fmt.Sprintf("This %s is already in use.", f.identifier),
			})
		}
	}

	if f.identifier != models.FieldUsername {
		if username, _ := cleaned[models.FieldUsername].(string); username != "" {
			exists, err := lookup.Exists(ctx, models.FieldUsername, username)
			if err != nil {
				return nil, err
			}
			if exists {
				errs = append(errs, models.FieldError{
					Field:   models.FieldUsername,
					Kind:    models.DuplicateIdentifier,
					Message: "A user with that username already exists.",
				})
			}
		}
	}
	return errs, nil
}

func (fld *field) clean(ctx context.Context, raw string, lookup Lookup) (any, []models.FieldError, error) {
	switch fld.Kind {
	case KindHTML:
		return "", nil, nil
	case KindBoolean:
		checked := parseCheckbox(raw)
		if fld.required && !checked {
			return nil, []models.FieldError{fld.missing()}, nil
		}
		return checked, nil, nil
	}

	value := raw
	if fld.Kind != KindPassword {
		value = strings.TrimSpace(value)
	}
	if value == "" {
		if fld.required {
			return nil, []models.FieldError{fld.missing()}, nil
		}
		return "", nil, nil
	}

	var errs []models.FieldError
	invalid := func(msg string) {
		errs = append(errs, models.FieldError{Field: fld.Name, Kind: models.FieldValidationError, Message: msg})
	}
	n := utf8.RuneCountInString(value)
	if fld.MinLength > 0 && n < fld.MinLength {
		invalid(fmt.Sprintf("Ensure this value has at least %d characters (it has %d).", fld.MinLength, n))
	}
	if fld.MaxLength > 0 && n > fld.MaxLength {
		invalid(fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", fld.MaxLength, n))
	}
	if fld.Kind == KindEmail && !govalidator.IsEmail(value) {
		invalid("Enter a valid email address.")
	}
	if fld.pattern != nil && !fld.pattern.MatchString(value) {
		invalid(fmt.Sprintf("Enter a valid %s.", fld.DisplayLabel()))
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}

	for _, check := range fld.checks {
		msg, err := check(ctx, value, lookup)
		if err != nil {
			return nil, nil, err
		}
		if msg != "" {
			invalid(msg)
		}
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}
	return value, nil, nil
}

func (fld *field) missing() models.FieldError {
	msg := fld.requiredMessage
	if msg == "" {
		msg = fmt.Sprintf("You need to fill the %s field.", fld.DisplayLabel())
	}
	return models.FieldError{Field: fld.Name, Kind: models.MissingField, Message: msg}
}

// normalizeBoolLike turns true/false/on/off (any case) into a bool and
// leaves every other value untouched.
func normalizeBoolLike(value string) any {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on":
		return true
	case "false", "off":
		return false
	}
	return value
}

// parseCheckbox reads a boolean field. Absent, empty, false, off and 0 are
// unchecked; any other value is checked.
func parseCheckbox(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "off", "0", "no":
		return false
	}
	return true
}
