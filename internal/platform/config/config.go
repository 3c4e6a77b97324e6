// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	pstrings "signup/pkg/platform/strings"
)

// DefaultBadDomains lists free-mail providers refused by the no_free_email
// form variant when REGISTRATION_BAD_DOMAINS is unset.
var DefaultBadDomains = []string{
	"aim.com", "aol.com", "email.com", "gmail.com", "googlemail.com",
	"hotmail.com", "hushmail.com", "msn.com", "mail.ru", "mailinator.com",
	"live.com", "yahoo.com",
}

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server       Server
	Registration Registration
	Auth         Auth
	Database     Database
	Redis        RedisConfig
	Kafka        Kafka
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `env:"SIGNUP_ADDR" envDefault:":8080"`
	ShutdownTimeout   time.Duration `env:"SIGNUP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout time.Duration `env:"SIGNUP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	RequestTimeout    time.Duration `env:"SIGNUP_REQUEST_TIMEOUT" envDefault:"15s"`
	ReadinessTimeout  time.Duration `env:"SIGNUP_READINESS_TIMEOUT" envDefault:"2s"`
}

// Registration is the registration surface. FormFields and RequiredFields
// left empty mean "identifier plus the user entity's required fields". An
// empty IdentifierField keeps the schema's own, username by default.
type Registration struct {
	Open            bool          `env:"REGISTRATION_OPEN" envDefault:"true"`
	IdentifierField string        `env:"REGISTRATION_IDENTIFIER_FIELD"`
	FormFields      []string      `env:"USER_FORM_FIELDS" envSeparator:","`
	RequiredFields  []string      `env:"USER_FORM_REQUIRED_FIELDS" envSeparator:","`
	BadDomains      []string      `env:"REGISTRATION_BAD_DOMAINS" envSeparator:","`
	RedirectURL     string        `env:"OPPS_REGISTRATION_REDIRECT_URL"`
	Variants        []string      `env:"REGISTRATION_FORM_VARIANTS" envSeparator:","`
	SchemaFile      string        `env:"REGISTRATION_SCHEMA_FILE"`
	RateLimit       int           `env:"REGISTRATION_RATE_LIMIT" envDefault:"10"`
	RateWindow      time.Duration `env:"REGISTRATION_RATE_WINDOW" envDefault:"1m"`
}

// Auth configures password hashing and session issuance.
type Auth struct {
	JWTSigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"signup"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
	// DeviceFingerprint stores a User-Agent fingerprint on each session.
	DeviceFingerprint bool `env:"SESSION_DEVICE_FINGERPRINT" envDefault:"true"`
}

// Database configures the Postgres user store and audit table. An empty URL
// selects in-memory stores.
type Database struct {
	URL            string        `env:"DATABASE_URL"`
	MaxConns       int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	ConnectRetries uint64        `env:"DATABASE_CONNECT_RETRIES" envDefault:"5"`
	ConnectBackoff time.Duration `env:"DATABASE_CONNECT_BACKOFF" envDefault:"500ms"`
	AutoMigrate    bool          `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig configures the session store. An empty URL keeps sessions in memory.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka configures the registration event sink. No brokers means events are
// only logged and audited locally.
type Kafka struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"REGISTRATION_EVENTS_TOPIC" envDefault:"registration.events"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
}

// Load parses the environment, normalizes list settings and validates.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses from an explicit environment map instead of the process.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	r := &c.Registration
	r.FormFields = pstrings.DedupeAndTrim(r.FormFields)
	r.RequiredFields = pstrings.DedupeAndTrim(r.RequiredFields)
	r.Variants = pstrings.DedupeAndTrimLower(r.Variants)
	r.BadDomains = pstrings.DedupeAndTrimLower(r.BadDomains)
	if len(r.BadDomains) == 0 {
		r.BadDomains = append([]string(nil), DefaultBadDomains...)
	}
	c.Kafka.Brokers = pstrings.DedupeAndTrim(c.Kafka.Brokers)
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Registration.RateLimit < 0 {
		errs = append(errs, errors.New("REGISTRATION_RATE_LIMIT must not be negative"))
	}
	if c.Registration.RateLimit > 0 && c.Registration.RateWindow <= 0 {
		errs = append(errs, errors.New("REGISTRATION_RATE_WINDOW must be positive"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("SIGNUP_REQUEST_TIMEOUT must be positive"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		errs = append(errs, errors.New("REGISTRATION_EVENTS_TOPIC must be set when KAFKA_BROKERS is"))
	}
	return errors.Join(errs...)
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}
