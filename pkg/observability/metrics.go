package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the persistence tier. All
// methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Statement metrics
	Statements        *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec

	// Fan-out metrics
	Batches        *prometheus.CounterVec
	BatchSize      *prometheus.HistogramVec
	PartialBatches *prometheus.CounterVec

	// Consistency audit metrics
	Divergences *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	statements := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Total number of storage statements executed",
		},
		[]string{"op", "template", "status"},
	)

	statementDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Storage statement latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_batches_total",
			Help:      "Total number of fan-out batches issued",
		},
		[]string{"operation", "status"},
	)

	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_batch_size",
			Help:      "Number of statements per fan-out batch",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
		},
		[]string{"operation"},
	)

	partial := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_partial_failures_total",
			Help:      "Fan-out batches in which some statements failed and others were applied",
		},
		[]string{"operation"},
	)

	divergences := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_divergences_total",
			Help:      "Reciprocal index divergences detected by audits",
		},
		[]string{"index"},
	)

	registry.MustRegister(statements, statementDuration, batches, batchSize, partial, divergences)

	return &Metrics{
		registry:          registry,
		Statements:        statements,
		StatementDuration: statementDuration,
		Batches:           batches,
		BatchSize:         batchSize,
		PartialBatches:    partial,
		Divergences:       divergences,
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStatement records one executed statement.
func (m *Metrics) ObserveStatement(op, template string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Statements.WithLabelValues(op, template, status(err)).Inc()
	m.StatementDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveBatch records one fan-out batch.
func (m *Metrics) ObserveBatch(operation string, size, failed int) {
	if m == nil {
		return
	}
	st := "ok"
	if failed > 0 {
		st = "error"
	}
	m.Batches.WithLabelValues(operation, st).Inc()
	m.BatchSize.WithLabelValues(operation).Observe(float64(size))
	if failed > 0 && failed < size {
		m.PartialBatches.WithLabelValues(operation).Inc()
	}
}

// ObserveDivergence records an index audit finding.
func (m *Metrics) ObserveDivergence(index string) {
	if m == nil {
		return
	}
	m.Divergences.WithLabelValues(index).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
