package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DecisionAllowed  = "allowed"
	DecisionLimited  = "limited"
	DecisionFailOpen = "fail_open"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	StoreFailures prometheus.Counter
	Degraded      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_ratelimit_decisions_total",
			Help: "Registration rate limit decisions by outcome",
		}, []string{"decision"}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "signup_ratelimit_store_failures_total",
			Help: "Total number of failed rate limit store checks",
		}),
		Degraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signup_ratelimit_degraded",
			Help: "1 while checks use the in-memory fallback store",
		}),
	}
}

func (m *Metrics) IncrementDecision(decision string) {
	m.Decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementStoreFailure() {
	m.StoreFailures.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
