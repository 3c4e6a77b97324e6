// Package publisher writes audit events to a store.
//
// Compliance events are fail-closed: Emit blocks until the write succeeds
// and returns the error otherwise, so the calling operation can fail.
// Security and operations events are best-effort: a failed write is logged
// and counted but never surfaced.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "signup/pkg/domain"
	audit "signup/pkg/platform/audit"
	"signup/pkg/requestcontext"
)

var errMissingAction = errors.New("audit event requires Action")

// Metrics counts emitted and failed audit writes by category.
type Metrics struct {
	Emitted         *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
}

// NewMetrics registers audit publisher metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_audit_events_emitted_total",
			Help: "Total number of audit events persisted",
		}, []string{"category"}),
		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_audit_persist_failures_total",
			Help: "Total number of audit events that failed to persist",
		}, []string{"category"}),
	}
}

// Publisher emits audit events with category-dependent failure semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a publisher writing to store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills ID, timestamp, category and request metadata, then persists the
// event. Only compliance failures are returned.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return errMissingAction
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	start := time.Now()
	err := p.store.Append(ctx, event)
	category := string(event.Category)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PersistFailures.WithLabelValues(category).Inc()
		}
		if event.Category != audit.CategoryCompliance {
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit event dropped",
					"action", event.Action,
					"category", category,
					"error", err,
				)
			}
			return nil
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit failed",
				"action", event.Action,
				"user_id", event.UserID.String(),
				"duration", time.Since(start),
				"error", err,
			)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.Emitted.WithLabelValues(category).Inc()
	}
	return nil
}

// List returns stored events for a user.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}
