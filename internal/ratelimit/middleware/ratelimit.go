// Package middleware throttles registration attempts per client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"signup/internal/ratelimit/metrics"
	"signup/internal/ratelimit/models"
	"signup/internal/ratelimit/store/bucket"
	"signup/pkg/platform/audit"
	"signup/pkg/platform/circuit"
	"signup/pkg/platform/httputil"
	"signup/pkg/requestcontext"
)

// Store is a sliding-window counter.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Middleware limits requests per client IP against a primary store. After
// repeated store failures the breaker opens and checks go to an in-memory
// fallback until the primary recovers. A check that fails outright lets
// the request through.
type Middleware struct {
	store    Store
	fallback Store
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration
	logger   *slog.Logger
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Middleware) {
		m.auditor = p
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		if b != nil {
			m.breaker = b
		}
	}
}

// WithFallback replaces the in-memory store used while the breaker is open.
func WithFallback(s Store) Option {
	return func(m *Middleware) {
		if s != nil {
			m.fallback = s
		}
	}
}

// New builds the middleware. A limit of zero disables limiting.
func New(store Store, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		fallback: bucket.New(),
		breaker:  circuit.New("ratelimit", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
		limit:    limit,
		window:   window,
		logger:   slog.Default(),
		disabled: limit <= 0 || store == nil,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		m.logger.Info("registration rate limiting disabled")
	}
	return m
}

// Limit wraps next with the per-IP check.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		result, degraded, err := m.check(ctx, models.RegistrationKey(ip))
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
			m.record(metrics.DecisionFailOpen)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.record(metrics.DecisionLimited)
			m.logAudit(ctx, ip, result)
			writeRateLimitExceeded(w, result)
			return
		}
		m.record(metrics.DecisionAllowed)
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) check(ctx context.Context, key string) (*models.Result, bool, error) {
	if !m.breaker.Allow() {
		result, err := m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}

	result, err := m.store.Allow(ctx, key, m.limit, m.window)
	if err != nil {
		if m.metrics != nil {
			m.metrics.IncrementStoreFailure()
		}
		open, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback", "error", err)
			m.setDegraded(true)
		}
		if !open {
			return nil, false, err
		}
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}

	if _, change := m.breaker.RecordSuccess(); change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered")
		m.setDegraded(false)
	}
	return result, m.breaker.IsOpen(), nil
}

func (m *Middleware) record(decision string) {
	if m.metrics != nil {
		m.metrics.IncrementDecision(decision)
	}
}

func (m *Middleware) setDegraded(degraded bool) {
	if m.metrics != nil {
		m.metrics.SetDegraded(degraded)
	}
}

func (m *Middleware) logAudit(ctx context.Context, ip string, result *models.Result) {
	event := audit.EventRegistrationLimited
	m.logger.InfoContext(ctx, string(event),
		"event", string(event),
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"retry_after", result.RetryAfter,
	)
	if m.auditor == nil {
		return
	}
	// Security events are best-effort; the publisher only fails compliance writes.
	_ = m.auditor.Emit(ctx, audit.Event{
		Action:   string(event),
		Subject:  ip,
		Reason:   "limit " + strconv.Itoa(result.Limit) + " per " + m.window.String(),
		ClientIP: ip,
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:            "rate_limited",
		ErrorDescription: "Too many registration attempts from this address. Please try again later.",
		RetryAfter:       result.RetryAfter,
	})
}
