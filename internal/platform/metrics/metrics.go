// Package metrics holds process-level Prometheus collectors and the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds infrastructure-level collectors shared across packages.
type Metrics struct {
	BuildInfo      *prometheus.GaugeVec
	BackendHealthy *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BuildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signup_build_info",
			Help: "Build information, value is always 1",
		}, []string{"version"}),
		BackendHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signup_backend_healthy",
			Help: "Whether a configured backend answered its last health check (1) or not (0)",
		}, []string{"backend"}),
	}
}

// SetBackend records a backend health result.
func (m *Metrics) SetBackend(name string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.BackendHealthy.WithLabelValues(name).Set(v)
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
