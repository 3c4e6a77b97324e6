package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.True(t, cfg.Registration.Open)
	assert.Empty(t, cfg.Registration.IdentifierField)
	assert.Empty(t, cfg.Registration.FormFields)
	assert.Empty(t, cfg.Registration.RedirectURL)
	assert.Equal(t, DefaultBadDomains, cfg.Registration.BadDomains)
	assert.Equal(t, 10, cfg.Registration.RateLimit)
	assert.Equal(t, time.Minute, cfg.Registration.RateWindow)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadinessTimeout)
	assert.Equal(t, "registration.events", cfg.Kafka.Topic)
	assert.True(t, cfg.UsesDevSigningKey())
}

func TestLoadFrom_RegistrationSurface(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"REGISTRATION_OPEN":              "false",
		"USER_FORM_FIELDS":               "username, email ,first_name,email",
		"USER_FORM_REQUIRED_FIELDS":      "username,email",
		"REGISTRATION_BAD_DOMAINS":       "Example.COM, spam.io",
		"OPPS_REGISTRATION_REDIRECT_URL": "/welcome/",
		"REGISTRATION_FORM_VARIANTS":     "TOS,unique_email",
		"KAFKA_BROKERS":                  "k1:9092,k2:9092",
	})
	require.NoError(t, err)

	r := cfg.Registration
	assert.False(t, r.Open)
	assert.Equal(t, []string{"username", "email", "first_name"}, r.FormFields)
	assert.Equal(t, []string{"username", "email"}, r.RequiredFields)
	assert.Equal(t, []string{"example.com", "spam.io"}, r.BadDomains)
	assert.Equal(t, "/welcome/", r.RedirectURL)
	assert.Equal(t, []string{"tos", "unique_email"}, r.Variants)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"malformed bool":       {"REGISTRATION_OPEN": "maybe"},
		"negative rate limit":  {"REGISTRATION_RATE_LIMIT": "-1"},
		"zero session ttl":     {"SESSION_TTL": "0s"},
		"zero rate window":     {"REGISTRATION_RATE_WINDOW": "0s"},
		"zero request timeout": {"SIGNUP_REQUEST_TIMEOUT": "0s"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			assert.Error(t, err)
		})
	}
}
