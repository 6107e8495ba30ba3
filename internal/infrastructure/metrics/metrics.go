// Package metrics exposes Prometheus metrics for physical transactions and
// HTTP requests.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txscope/internal/core/tx"
)

// Metrics holds the application collectors.
type Metrics struct {
	// TransactionsTotal counts finished physical transactions (propagation, outcome).
	TransactionsTotal *prometheus.CounterVec

	// UnexpectedRollbacksTotal counts commits turned into rollbacks (name).
	UnexpectedRollbacksTotal *prometheus.CounterVec

	// TransactionDuration observes physical transaction lifetimes (outcome).
	TransactionDuration *prometheus.HistogramVec

	// ScopesPerTransaction observes how many joined scopes each transaction had.
	ScopesPerTransaction prometheus.Histogram

	// HTTPRequestsTotal counts HTTP requests (method, path, status_code).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP latency (method, path).
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// Compile-time check that Metrics implements tx.Observer.
var _ tx.Observer = (*Metrics)(nil)

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txscope_transactions_total",
				Help: "Total number of finished physical transactions",
			},
			[]string{"propagation", "outcome"},
		),
		UnexpectedRollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txscope_unexpected_rollbacks_total",
				Help: "Commits rolled back because the transaction was rollback-only",
			},
			[]string{"name"},
		),
		TransactionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txscope_transaction_duration_seconds",
				Help:    "Physical transaction duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),
		ScopesPerTransaction: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "txscope_scopes_per_transaction",
				Help:    "Logical scopes that joined one physical transaction",
				Buckets: []float64{0, 1, 2, 4, 8, 16},
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.TransactionsTotal,
		m.UnexpectedRollbacksTotal,
		m.TransactionDuration,
		m.ScopesPerTransaction,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// TransactionFinished records one physical transaction.
func (m *Metrics) TransactionFinished(_ context.Context, report tx.Report) {
	outcome := report.Outcome.String()
	m.TransactionsTotal.WithLabelValues(report.Propagation.String(), outcome).Inc()
	m.TransactionDuration.WithLabelValues(outcome).Observe(report.Duration.Seconds())
	m.ScopesPerTransaction.Observe(float64(len(report.Participants)))
	if report.Unexpected {
		m.UnexpectedRollbacksTotal.WithLabelValues(report.Name).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
