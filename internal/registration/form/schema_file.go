package form

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadSchemaFile reads a field table from YAML:
//
//	identifier_field: email
//	form_fields: [email, first_name]
//	fields:
//	  - {name: email, label: email address, kind: email, required: true}
//	  - {name: first_name, kind: text, max_length: 150}
//
// The result is not validated; call Schema.Validate.
func LoadSchemaFile(path string) (Schema, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Schema{}, fmt.Errorf("load schema file %s: %w", path, err)
	}
	var s Schema
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Schema{}, fmt.Errorf("decode schema file %s: %w", path, err)
	}
	return s, nil
}
