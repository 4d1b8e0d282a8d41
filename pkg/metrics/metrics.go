// Package metrics holds the Prometheus collectors for jobs, provider calls,
// spend and budget decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics is a set of registered collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobsTotal     *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	ProviderCalls *prometheus.CounterVec
	CostDollars   *prometheus.CounterVec
	BudgetDenials *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry along
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwright_jobs_total",
				Help: "Total number of jobs by kind and outcome",
			},
			[]string{"kind", "status"}, // status: success|error|denied
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "postwright_job_duration_seconds",
				Help:    "Job duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwright_provider_calls_total",
				Help: "Total provider calls by provider, operation and outcome",
			},
			[]string{"provider", "operation", "status"},
		),
		CostDollars: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwright_cost_dollars_total",
				Help: "Total recorded spend in USD",
			},
			[]string{"service"},
		),
		BudgetDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwright_budget_denials_total",
				Help: "Jobs denied by the budget policy",
			},
			[]string{"reason"}, // reason: monthly|daily|error
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postwright_cache_lookups_total",
				Help: "Prompt cache lookups by result",
			},
			[]string{"result"}, // result: hit|miss
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JobsTotal,
		m.JobDuration,
		m.ProviderCalls,
		m.CostDollars,
		m.BudgetDenials,
		m.CacheLookups,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob records a finished job.
func (m *Metrics) ObserveJob(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(kind, status).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ProviderCall records one provider call.
func (m *Metrics) ProviderCall(provider, operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCalls.WithLabelValues(provider, operation, status).Inc()
}

// AddCost records spend for a service.
func (m *Metrics) AddCost(service string, cost decimal.Decimal) {
	if m == nil || !cost.IsPositive() {
		return
	}
	m.CostDollars.WithLabelValues(service).Add(cost.InexactFloat64())
}

// BudgetDenied records a denied job.
func (m *Metrics) BudgetDenied(reason string) {
	if m == nil {
		return
	}
	m.BudgetDenials.WithLabelValues(reason).Inc()
}

// CacheLookup records a prompt cache lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
