package form

import (
	"context"
	"fmt"
	"slices"

	"signup/internal/registration/models"
	"signup/pkg/email"
	pstrings "signup/pkg/platform/strings"
)

const fieldTOS = "tos"

// Variant names accepted by ParseVariants.
const (
	VariantTermsOfService = "tos"
	VariantUniqueEmail    = "unique_email"
	VariantNoFreeEmail    = "no_free_email"
)

// Variant adds fields or checks to a Form.
type Variant interface {
	Name() string
	apply(f *Form) error
}

type variantFunc struct {
	name string
	fn   func(f *Form) error
}

func (v variantFunc) Name() string        { return v.name }
func (v variantFunc) apply(f *Form) error { return v.fn(f) }

// TermsOfService adds a required "tos" checkbox.
func TermsOfService() Variant {
	return variantFunc{name: VariantTermsOfService, fn: func(f *Form) error {
		f.addField(&field{
			FieldDescriptor: FieldDescriptor{
				Name:     fieldTOS,
				Label:    "I have read and agree to the Terms of Service",
				Kind:     KindBoolean,
				Required: true,
			},
			required:        true,
			requiredMessage: "You must agree to the terms to register",
		})
		return nil
	}}
}

// UniqueEmail rejects email addresses already held by a user, ignoring case.
func UniqueEmail() Variant {
	return variantFunc{name: VariantUniqueEmail, fn: func(f *Form) error {
		return f.addCheck(models.FieldEmail, func(ctx context.Context, value string, lookup Lookup) (string, error) {
			exists, err := lookup.Exists(ctx, models.FieldEmail, value)
			if err != nil {
				return "", err
			}
			if exists {
				return "This email address is already in use. Please supply a different email address.", nil
			}
			return "", nil
		})
	}}
}

// NoFreeEmail rejects email addresses whose domain is in badDomains.
func NoFreeEmail(badDomains []string) Variant {
	domains := pstrings.DedupeAndTrimLower(badDomains)
	return variantFunc{name: VariantNoFreeEmail, fn: func(f *Form) error {
		return f.addCheck(models.FieldEmail, func(_ context.Context, value string, _ Lookup) (string, error) {
			if slices.Contains(domains, email.Domain(value)) {
				return "Registration using free email addresses is prohibited. Please supply a different email address.", nil
			}
			return "", nil
		})
	}}
}

// ParseVariants resolves configured variant names.
func ParseVariants(names, badDomains []string) ([]Variant, error) {
	variants := make([]Variant, 0, len(names))
	for _, name := range pstrings.DedupeAndTrimLower(names) {
		switch name {
		case VariantTermsOfService:
			variants = append(variants, TermsOfService())
		case VariantUniqueEmail:
			variants = append(variants, UniqueEmail())
		case VariantNoFreeEmail:
			variants = append(variants, NoFreeEmail(badDomains))
		default:
			return nil, fmt.Errorf("unknown form variant %q", name)
		}
	}
	return variants, nil
}
