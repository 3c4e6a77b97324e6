package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for Attempts.
const (
	OutcomeRegistered  = "registered"
	OutcomeInvalid     = "invalid"
	OutcomeClosed      = "closed"
	OutcomeAuthFailed  = "auth_failed"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Metrics tracks registration attempts and the critical path duration.
type Metrics struct {
	Attempts           *prometheus.CounterVec
	FieldErrors        *prometheus.CounterVec
	UsernamesGenerated prometheus.Counter
	PublishFailures    prometheus.Counter
	RegisterDuration   prometheus.Histogram
}

// New registers the registration collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_registration_attempts_total",
			Help: "Registration submissions by outcome",
		}, []string{"outcome"}),
		FieldErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_registration_field_errors_total",
			Help: "Rejected fields by field name and error kind",
		}, []string{"field", "kind"}),
		UsernamesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "signup_usernames_generated_total",
			Help: "Usernames derived from an email address",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "signup_user_registered_publish_failures_total",
			Help: "user_registered events the sink failed to deliver",
		}),
		RegisterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signup_register_duration_seconds",
			Help:    "Duration of Register (create, authenticate, start session, publish)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementAttempt(outcome string) {
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementFieldError(field, kind string) {
	m.FieldErrors.WithLabelValues(field, kind).Inc()
}

func (m *Metrics) IncrementUsernameGenerated() {
	m.UsernamesGenerated.Inc()
}

func (m *Metrics) IncrementPublishFailure() {
	m.PublishFailures.Inc()
}

// ObserveRegister records the duration of a Register call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
