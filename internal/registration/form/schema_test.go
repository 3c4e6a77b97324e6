package form

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signup/pkg/domain-errors"
)

func TestDefaultSchemaIsValid(t *testing.T) {
	s := DefaultSchema()
	require.NoError(t, s.Validate())
	assert.Equal(t, []string{"username", "email"}, s.EffectiveFormFields())
	assert.Equal(t, []string{"username", "email"}, s.EffectiveRequiredFields())
}

func TestSchemaWithSettings(t *testing.T) {
	base := DefaultSchema()
	s := base.WithSettings("email", []string{"email", "first_name", "email"}, []string{"email"})

	assert.Equal(t, "email", s.IdentifierField)
	assert.Equal(t, []string{"email", "first_name"}, s.EffectiveFormFields())
	assert.Equal(t, []string{"email"}, s.EffectiveRequiredFields())
	assert.Empty(t, base.FormFields, "base schema untouched")

	same := base.WithSettings("", nil, nil)
	assert.Equal(t, base, same)
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schema)
		wantMsg string
	}{
		{
			name: "duplicate field",
			mutate: func(s *Schema) {
				s.UserFields = append(s.UserFields, FieldDescriptor{Name: "email", Kind: KindEmail})
			},
			wantMsg: `field "email" declared twice`,
		},
		{
			name: "reserved name",
			mutate: func(s *Schema) {
				s.UserFields = append(s.UserFields, FieldDescriptor{Name: "tos", Kind: KindBoolean})
			},
			wantMsg: `field name "tos" is reserved`,
		},
		{
			name: "bad field name",
			mutate: func(s *Schema) {
				s.UserFields = append(s.UserFields, FieldDescriptor{Name: "Nick Name", Kind: KindText})
			},
			wantMsg: `"fieldname"`,
		},
		{
			name: "unknown kind",
			mutate: func(s *Schema) {
				s.UserFields[2].Kind = "date"
			},
			wantMsg: `"oneof"`,
		},
		{
			name: "min exceeds max",
			mutate: func(s *Schema) {
				s.UserFields[2].MinLength = 200
			},
			wantMsg: `field "first_name": min_length exceeds max_length`,
		},
		{
			name: "invalid pattern",
			mutate: func(s *Schema) {
				s.UserFields[2].Pattern = "("
			},
			wantMsg: `field "first_name": invalid pattern`,
		},
		{
			name: "required html",
			mutate: func(s *Schema) {
				s.UserFields = append(s.UserFields, FieldDescriptor{Name: "intro", Kind: KindHTML, Required: true})
			},
			wantMsg: `html fields cannot be required`,
		},
		{
			name: "undeclared identifier",
			mutate: func(s *Schema) {
				s.IdentifierField = "phone"
				s.FormFields = []string{"username", "email"}
			},
			wantMsg: `identifier field "phone" is not declared`,
		},
		{
			name: "identifier of wrong kind",
			mutate: func(s *Schema) {
				s.UserFields = append(s.UserFields, FieldDescriptor{Name: "member", Kind: KindBoolean})
				s.IdentifierField = "member"
			},
			wantMsg: `must be text or email`,
		},
		{
			name: "undeclared form field",
			mutate: func(s *Schema) {
				s.FormFields = []string{"username", "email", "phone"}
			},
			wantMsg: `form field "phone" is not declared`,
		},
		{
			name: "required field off the form",
			mutate: func(s *Schema) {
				s.FormFields = []string{"username", "email"}
				s.RequiredFields = []string{"username", "email", "first_name"}
			},
			wantMsg: `required field "first_name" is not on the form`,
		},
		{
			name: "identifier off the form",
			mutate: func(s *Schema) {
				s.FormFields = []string{"email"}
				s.RequiredFields = []string{"email"}
			},
			wantMsg: `identifier field "username" is not on the form`,
		},
		{
			name: "optional username needs required email",
			mutate: func(s *Schema) {
				s.IdentifierField = "first_name"
				s.FormFields = []string{"first_name", "username", "email"}
				s.RequiredFields = []string{"first_name"}
			},
			wantMsg: `email must be required when username is optional`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSchema()
			s.UserFields = append([]FieldDescriptor(nil), s.UserFields...)
			tt.mutate(&s)

			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestSchemaValidateReportsEveryProblem(t *testing.T) {
	s := DefaultSchema()
	s.FormFields = []string{"username", "email", "phone", "fax"}

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"phone"`)
	assert.Contains(t, err.Error(), `"fax"`)
}

func TestLoadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	body := `identifier_field: email
form_fields: [email, first_name]
required_fields: [email]
password_min_length: 8
fields:
  - name: email
    label: email address
    kind: email
    required: true
    max_length: 254
  - name: first_name
    kind: text
    max_length: 150
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := LoadSchemaFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, "email", s.IdentifierField)
	assert.Equal(t, []string{"email", "first_name"}, s.FormFields)
	assert.Equal(t, 8, s.PasswordMinLength)
	require.Len(t, s.UserFields, 2)
	assert.Equal(t, KindEmail, s.UserFields[0].Kind)
	assert.Equal(t, 254, s.UserFields[0].MaxLength)
	assert.Equal(t, "first name", s.UserFields[1].DisplayLabel())

	_, err = LoadSchemaFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
