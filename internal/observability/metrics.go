package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "cargoledger"

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps unit tests free of registry plumbing.
type Metrics struct {
	Registry *prometheus.Registry

	recomputeWaybills *prometheus.CounterVec
	invoices          *prometheus.CounterVec
	jobs              *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		recomputeWaybills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_waybills_total",
			Help:      "Waybills processed by recompute, by outcome.",
		}, []string{"outcome"}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_generated_total",
			Help:      "Invoice upserts by billing side and outcome.",
		}, []string{"side", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by kind and terminal status.",
		}, []string{"kind", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job run time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"kind"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recomputeWaybills,
		m.invoices,
		m.jobs,
		m.jobDuration,
	)
	return m
}

func (m *Metrics) RecomputeWaybill(outcome string) {
	if m == nil {
		return
	}
	m.recomputeWaybills.WithLabelValues(outcome).Inc()
}

func (m *Metrics) InvoiceUpsert(side, outcome string) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(side, outcome).Inc()
}

func (m *Metrics) JobFinished(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
