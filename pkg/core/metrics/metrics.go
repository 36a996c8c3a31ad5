// Package metrics exposes Prometheus counters for the reconciliation engine.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	classifications *prometheus.CounterVec
	compareRequests *prometheus.CounterVec
	compareRows     prometheus.Histogram
	backfillRows    *prometheus.CounterVec
	backfillRuns    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dart_accounts_classifications_total",
			Help: "Account classifications by statement type and score (0 = no match).",
		}, []string{"statement", "score"}),
		compareRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dart_accounts_compare_requests_total",
			Help: "Peer comparisons by mode and outcome.",
		}, []string{"mode", "outcome"}),
		compareRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dart_accounts_compare_rows",
			Help:    "Companies returned per peer comparison.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		backfillRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dart_accounts_backfill_rows_total",
			Help: "Cache rows processed by backfill, by result.",
		}, []string{"result"}),
		backfillRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dart_accounts_backfill_runs_total",
			Help: "Backfill invocations by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.classifications,
		m.compareRequests,
		m.compareRows,
		m.backfillRows,
		m.backfillRuns,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Push sends every collector to a Pushgateway under job, replacing what the
// job pushed before. Batch binaries call it once before exiting.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Classification records one classify call; score 0 means no match.
func (m *Metrics) Classification(statement string, score int) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(statement, strconv.Itoa(score)).Inc()
}

// Compare records one peer comparison.
func (m *Metrics) Compare(mode string, rows int, err error) {
	if m == nil {
		return
	}
	m.compareRequests.WithLabelValues(mode, outcome(err)).Inc()
	if err == nil {
		m.compareRows.Observe(float64(rows))
	}
}

// Backfill records one backfill run.
func (m *Metrics) Backfill(updated int, err error) {
	if m == nil {
		return
	}
	m.backfillRows.WithLabelValues("updated").Add(float64(updated))
	if err != nil {
		m.backfillRows.WithLabelValues("failed").Inc()
	}
	m.backfillRuns.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
