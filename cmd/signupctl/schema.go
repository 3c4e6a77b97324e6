package main

import (
	"encoding/json"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"signup/internal/registration/form"
)

const (
	flagSchemaFile      = "schema-file"
	flagIdentifierField = "identifier-field"
	flagFormFields      = "form-fields"
	flagRequiredFields  = "required-fields"
	flagVariants        = "variants"
	flagBadDomains      = "bad-domains"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the registration form",
		Long: `Build the registration form from REGISTRATION_* and USER_FORM_* settings.
Flags override the environment for a single invocation.`,
	}

	flags := cmd.PersistentFlags()
	flags.String(flagSchemaFile, "", "YAML field table (overrides REGISTRATION_SCHEMA_FILE)")
	flags.String(flagIdentifierField, "", "identifier field (overrides REGISTRATION_IDENTIFIER_FIELD)")
	flags.StringSlice(flagFormFields, nil, "form fields (overrides USER_FORM_FIELDS)")
	flags.StringSlice(flagRequiredFields, nil, "required fields (overrides USER_FORM_REQUIRED_FIELDS)")
	flags.StringSlice(flagVariants, nil, "form variants (overrides REGISTRATION_FORM_VARIANTS)")
	flags.StringSlice(flagBadDomains, nil, "refused email domains (overrides REGISTRATION_BAD_DOMAINS)")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the form builds",
		RunE:  runSchemaValidate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the form fields as JSON",
		RunE:  runSchemaPrint,
	})

	return cmd
}

func runSchemaValidate(cmd *cobra.Command, _ []string) error {
	f, err := buildForm(cmd)
	if err != nil {
		return err
	}
	d := f.Describe()
	cmd.Printf("form ok: identifier %q, %d fields\n", d.IdentifierField, len(d.Fields))
	return nil
}

func runSchemaPrint(cmd *cobra.Command, _ []string) error {
	f, err := buildForm(cmd)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(f.Describe(), "", "  ")
	if err != nil {
		return oops.Code("ENCODE_FAILED").With("operation", "encode form").Wrap(err)
	}
	cmd.Println(string(out))
	return nil
}

func buildForm(cmd *cobra.Command) (*form.Form, error) {
	settings, err := formSettings(cmd)
	if err != nil {
		return nil, err
	}
	f, err := form.Build(settings)
	if err != nil {
		return nil, oops.Code("SCHEMA_INVALID").With("operation", "build form").Wrap(err)
	}
	return f, nil
}

// formSettings layers flags the user set over the environment.
func formSettings(cmd *cobra.Command) (form.Settings, error) {
	cfg, err := loadConfig()
	if err != nil {
		return form.Settings{}, oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}
	reg := cfg.Registration

	k := koanf.New(".")
	for key, val := range map[string]any{
		flagSchemaFile:      reg.SchemaFile,
		flagIdentifierField: reg.IdentifierField,
		flagFormFields:      nonNil(reg.FormFields),
		flagRequiredFields:  nonNil(reg.RequiredFields),
		flagVariants:        nonNil(reg.Variants),
		flagBadDomains:      nonNil(reg.BadDomains),
	} {
		if err := k.Set(key, val); err != nil {
			return form.Settings{}, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}
	if err := k.Load(posflag.Provider(cmd.Flags(), ".", k), nil); err != nil {
		return form.Settings{}, oops.Code("CONFIG_INVALID").With("operation", "read flags").Wrap(err)
	}

	return form.Settings{
		SchemaFile:      k.String(flagSchemaFile),
		IdentifierField: k.String(flagIdentifierField),
		FormFields:      k.Strings(flagFormFields),
		RequiredFields:  k.Strings(flagRequiredFields),
		Variants:        k.Strings(flagVariants),
		BadDomains:      k.Strings(flagBadDomains),
	}, nil
}

// nonNil keeps empty lists as keys so unchanged flags do not replace them.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
