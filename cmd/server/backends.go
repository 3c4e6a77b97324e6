package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	authservice "signup/internal/auth/service"
	sessionstore "signup/internal/auth/store/session"
	"signup/internal/platform/config"
	"signup/internal/platform/httpserver"
	platformkafka "signup/internal/platform/kafka"
	platformmetrics "signup/internal/platform/metrics"
	"signup/internal/platform/postgres"
	platformredis "signup/internal/platform/redis"
	ratelimit "signup/internal/ratelimit/middleware"
	"signup/internal/ratelimit/store/bucket"
	regservice "signup/internal/registration/service"
	userstore "signup/internal/registration/store/user"
	"signup/pkg/platform/audit"
	auditmemory "signup/pkg/platform/audit/store/memory"
	auditpostgres "signup/pkg/platform/audit/store/postgres"
)

// backends holds the stores chosen by configuration. Unconfigured
// backends fall back to in-memory implementations.
type backends struct {
	users    regservice.UserStore
	sessions authservice.SessionStore
	audit    audit.Store
	tx       regservice.StoreTx
	buckets  ratelimit.Store
	// memBucket is set when rate limit windows live in this process and
	// need sweeping.
	memBucket *bucket.InMemoryBucketStore
	kafka     *kgo.Client

	// checks back the readiness probe, one per configured backend.
	checks  map[string]httpserver.Check
	infra   *platformmetrics.Metrics
	closers []func()
}

// openBackends opens the configured stores. identifierField is the form's
// login field; user stores keep it unique.
func openBackends(ctx context.Context, cfg config.Config, identifierField string, log *slog.Logger, infra *platformmetrics.Metrics) (*backends, error) {
	b := &backends{checks: map[string]httpserver.Check{}, infra: infra}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	if err := b.openPostgres(ctx, cfg.Database, identifierField, log, infra); err != nil {
		return nil, err
	}
	if err := b.openRedis(ctx, cfg.Redis, log, infra); err != nil {
		return nil, err
	}
	if err := b.openKafka(ctx, cfg.Kafka, log, infra); err != nil {
		return nil, err
	}
	ok = true
	return b, nil
}

func (b *backends) openPostgres(ctx context.Context, cfg config.Database, identifierField string, log *slog.Logger, infra *platformmetrics.Metrics) error {
	unique := userstore.WithUniqueField(identifierField)
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set; users and audit events are kept in memory")
		users := userstore.New(unique)
		b.users = users
		b.tx = users
		b.audit = auditmemory.NewInMemoryStore()
		return nil
	}

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.URL); err != nil {
			return err
		}
	}

	pool, err := postgres.Connect(ctx, cfg, log)
	if err != nil {
		infra.SetBackend("postgres", false)
		return err
	}
	b.closers = append(b.closers, pool.Close)
	infra.SetBackend("postgres", true)

	auditDB, err := postgres.OpenSQL(ctx, cfg.URL)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() { _ = auditDB.Close() })

	b.checks["postgres"] = pool.Ping
	b.users = userstore.NewPostgres(pool, unique)
	b.tx = postgres.NewTxRunner(pool)
	b.audit = auditpostgres.New(auditDB)
	log.Info("using postgres user and audit stores")
	return nil
}

func (b *backends) openRedis(ctx context.Context, cfg config.RedisConfig, log *slog.Logger, infra *platformmetrics.Metrics) error {
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		infra.SetBackend("redis", false)
		return err
	}
	if client == nil {
		log.Warn("REDIS_URL not set; sessions and rate limits are kept in memory")
		b.sessions = sessionstore.New()
		b.memBucket = bucket.New()
		b.buckets = b.memBucket
		return nil
	}
	b.closers = append(b.closers, func() { _ = client.Close() })
	infra.SetBackend("redis", true)
	b.checks["redis"] = client.Health
	b.sessions = sessionstore.NewRedis(client.Client)
	b.buckets = bucket.NewRedis(client.Client)
	log.Info("using redis session and rate limit stores")
	return nil
}

func (b *backends) openKafka(ctx context.Context, cfg config.Kafka, log *slog.Logger, infra *platformmetrics.Metrics) error {
	client, err := platformkafka.NewClient(cfg)
	if err != nil {
		return err
	}
	if client == nil {
		log.Info("KAFKA_BROKERS not set; registration events are only logged and audited")
		return nil
	}
	b.closers = append(b.closers, client.Close)
	if err := platformkafka.EnsureTopic(ctx, client, cfg); err != nil {
		infra.SetBackend("kafka", false)
		return err
	}
	infra.SetBackend("kafka", true)
	b.checks["kafka"] = client.Ping
	b.kafka = client
	log.Info("publishing registration events to kafka", "topic", cfg.Topic)
	return nil
}

// reportHealth records readiness probe results on the backend gauge.
func (b *backends) reportHealth(name string, healthy bool) {
	if b.infra != nil {
		b.infra.SetBackend(name, healthy)
	}
}

// Close releases backends in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func migrateUp(databaseURL string) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	if err := m.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
