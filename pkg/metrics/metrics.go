// Package metrics provides Prometheus metrics for the pharmacy service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Settlement outcomes
const (
	OutcomeCommitted  = "committed"
	OutcomeRejected   = "rejected"
	OutcomeRolledBack = "rolled_back"
)

// Metrics holds all application metrics
type Metrics struct {
	SettlementsTotal        *prometheus.CounterVec
	SettlementDuration      prometheus.Histogram
	PrescriptionsReconciled *prometheus.CounterVec
	MissingLinesTotal       prometheus.Counter
	LedgerAppendFailures    prometheus.Counter
	LedgerBreakerState      *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates all metrics and registers them with reg.
// A nil reg uses a private registry, which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		SettlementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Invoice settlement attempts by outcome",
		}, []string{"outcome"}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Invoice settlement duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		PrescriptionsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prescriptions_reconciled_total",
			Help: "Prescriptions created, by initial status",
		}, []string{"status"}),
		MissingLinesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescription_missing_lines_total",
			Help: "Requested prescription lines not found in the catalog",
		}),
		LedgerAppendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_append_failures_total",
			Help: "Missing-medicine records that could not be appended to the ledger",
		}),
		LedgerBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_breaker_state",
			Help: "Ledger sink circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"sink"}),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.SettlementsTotal,
		m.SettlementDuration,
		m.PrescriptionsReconciled,
		m.MissingLinesTotal,
		m.LedgerAppendFailures,
		m.LedgerBreakerState,
	)

	return m
}

// Handler exposes the registry the metrics were registered with
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
