package form

import "fmt"

// Settings are the deployment overrides layered on a schema.
type Settings struct {
	SchemaFile      string
	IdentifierField string
	FormFields      []string
	RequiredFields  []string
	Variants        []string
	BadDomains      []string
}

// Build loads the schema file, or DefaultSchema when none is set, applies
// the overrides and variants, and validates the result.
func Build(s Settings) (*Form, error) {
	schema := DefaultSchema()
	if s.SchemaFile != "" {
		loaded, err := LoadSchemaFile(s.SchemaFile)
		if err != nil {
			return nil, err
		}
		schema = loaded
	}
	schema = schema.WithSettings(s.IdentifierField, s.FormFields, s.RequiredFields)

	variants, err := ParseVariants(s.Variants, s.BadDomains)
	if err != nil {
		return nil, err
	}
	f, err := New(schema, variants...)
	if err != nil {
		return nil, fmt.Errorf("registration form: %w", err)
	}
	return f, nil
}
