// Package metrics exposes Prometheus collectors for unlocks, admissions and
// generations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "listinggen"

// Metrics owns a private registry and the service collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	licenseChecks   *prometheus.CounterVec
	admissions      *prometheus.CounterVec
	generations     *prometheus.CounterVec
	variantDuration prometheus.Histogram
	sessions        prometheus.Gauge
}

// New registers the collectors plus Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		licenseChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_checks_total",
			Help:      "Unlock attempts by result (override, verified, rejected, transport_error, http_status, malformed).",
		}, []string{"result"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission decisions by outcome.",
		}, []string{"outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation batches by result (succeeded, partial, no_output, failed).",
		}, []string{"result"}),
		variantDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "variant_duration_seconds",
			Help:      "Latency of one completion call.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live in-memory sessions.",
		}),
	}

	reg.MustRegister(
		m.licenseChecks,
		m.admissions,
		m.generations,
		m.variantDuration,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) LicenseCheck(result string) {
	if m == nil {
		return
	}
	m.licenseChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) Admission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Generation(result string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(result).Inc()
}

func (m *Metrics) VariantDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.variantDuration.Observe(d.Seconds())
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
