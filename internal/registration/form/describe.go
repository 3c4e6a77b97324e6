package form

// FieldDescription is the client-facing view of one form field.
type FieldDescription struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Kind      Kind   `json:"kind"`
	Required  bool   `json:"required"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	HTML      string `json:"html,omitempty"`
}

// Description lets clients render the form without a template layer.
type Description struct {
	IdentifierField string             `json:"identifier_field"`
	Variants        []string           `json:"variants,omitempty"`
	Fields          []FieldDescription `json:"fields"`
}

// Describe lists the fields in render order.
func (f *Form) Describe() Description {
	d := Description{
		IdentifierField: f.identifier,
		Variants:        append([]string(nil), f.variants...),
		Fields:          make([]FieldDescription, 0, len(f.fields)),
	}
	for _, fld := range f.fields {
		d.Fields = append(d.Fields, FieldDescription{
			Name:      fld.Name,
			Label:     fld.DisplayLabel(),
			Kind:      fld.Kind,
			Required:  fld.required,
			MinLength: fld.MinLength,
			MaxLength: fld.MaxLength,
			HTML:      fld.HTML,
		})
	}
	return d
}
