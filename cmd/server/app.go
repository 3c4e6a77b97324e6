package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"signup/internal/auth/device"
	authservice "signup/internal/auth/service"
	"signup/internal/events"
	eventskafka "signup/internal/events/kafka"
	jwttoken "signup/internal/jwt_token"
	"signup/internal/platform/config"
	"signup/internal/platform/httpserver"
	platformmetrics "signup/internal/platform/metrics"
	"signup/internal/platform/middleware"
	ratelimitmetrics "signup/internal/ratelimit/metrics"
	ratelimit "signup/internal/ratelimit/middleware"
	"signup/internal/registration/form"
	reghandler "signup/internal/registration/handler"
	regmetrics "signup/internal/registration/metrics"
	"signup/internal/registration/models"
	regservice "signup/internal/registration/service"
	auditpublisher "signup/pkg/platform/audit/publisher"
	"signup/pkg/platform/circuit"
	"signup/pkg/platform/httputil"
	"signup/pkg/platform/middleware/metadata"
	"signup/pkg/platform/middleware/requesttime"
)

type app struct {
	router http.Handler
	// sweep prunes idle in-memory rate limit windows until ctx is done.
	sweep func(ctx context.Context, every time.Duration)
}

func buildApp(cfg config.Config, registrationForm *form.Form, b *backends, log *slog.Logger, reg *prometheus.Registry) (*app, error) {
	auditor := auditpublisher.New(b.audit,
		auditpublisher.WithLogger(log),
		auditpublisher.WithMetrics(auditpublisher.NewMetrics(reg)),
	)

	hasher := authservice.NewBcryptHasher(cfg.Auth.BcryptCost)
	authenticator, err := authservice.New(
		b.users,
		b.sessions,
		jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer),
		hasher,
		authservice.WithLogger(log),
		authservice.WithSessionTTL(cfg.Auth.SessionTTL),
		authservice.WithDeviceService(device.NewService(cfg.Auth.DeviceFingerprint)),
	)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(events.WithLogger(log))
	bus.Subscribe(models.EventUserRegistered, events.NewLogSubscriber(log))
	bus.Subscribe(models.EventUserRegistered, events.NewAuditSubscriber(auditor))
	if b.kafka != nil {
		bus.Subscribe(models.EventUserRegistered, eventskafka.NewSink(b.kafka, cfg.Kafka.Topic,
			eventskafka.WithLogger(log),
			eventskafka.WithBreaker(circuit.New("kafka", circuit.WithCooldown(30*time.Second))),
		))
	}

	service, err := regservice.New(
		regservice.Deps{
			Form:   registrationForm,
			Users:  b.users,
			Auth:   authenticator,
			Events: bus,
			Hasher: hasher,
		},
		regservice.Config{
			Open:        cfg.Registration.Open,
			RedirectURL: cfg.Registration.RedirectURL,
		},
		regservice.WithLogger(log),
		regservice.WithAuditPublisher(auditor),
		regservice.WithMetrics(regmetrics.New(reg)),
		regservice.WithTx(b.tx),
	)
	if err != nil {
		return nil, fmt.Errorf("build registration service: %w", err)
	}

	limiter := ratelimit.New(b.buckets, cfg.Registration.RateLimit, cfg.Registration.RateWindow,
		ratelimit.WithLogger(log),
		ratelimit.WithAuditPublisher(auditor),
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
	)
	handler := reghandler.New(service, log, reghandler.WithSubmitLimiter(limiter.Limit))

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(log))
	handler.Register(r)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/readyz", httpserver.Readiness(cfg.Server, b.checks, b.reportHealth))
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler(reg))

	a := &app{router: r}
	if mem := b.memBucket; mem != nil {
		window := cfg.Registration.RateWindow
		a.sweep = func(ctx context.Context, every time.Duration) {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := mem.Sweep(window); n > 0 {
						log.Debug("swept idle rate limit windows", "count", n)
					}
				}
			}
		}
	}
	return a, nil
}

func buildForm(cfg config.Registration) (*form.Form, error) {
	return form.Build(form.Settings{
		SchemaFile:      cfg.SchemaFile,
		IdentifierField: cfg.IdentifierField,
		FormFields:      cfg.FormFields,
		RequiredFields:  cfg.RequiredFields,
		Variants:        cfg.Variants,
		BadDomains:      cfg.BadDomains,
	})
}
