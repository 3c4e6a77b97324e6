package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsernameFromEmail(t *testing.T) {
	tests := map[string]string{
		"jane.doe@example.com": "jane_doe_example_com",
		"bob@mail.co.uk":       "bob_mail_co_uk",
		"plain":                "plain",
		"dots.only.here":       "dots_only_here",
		"tag+news@example.org": "tag+news_example_org",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, UsernameFromEmail(in), in)
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "gmail.com", Domain("someone@GMail.com"))
	assert.Equal(t, "b.org", Domain("a@x@b.org"))
	assert.Equal(t, "", Domain("no-at-sign"))
	assert.Equal(t, "", Domain("trailing@"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Jane.Doe@example.com", Normalize("  Jane.Doe@EXAMPLE.com "))
	assert.Equal(t, "nobody", Normalize("nobody"))
}
