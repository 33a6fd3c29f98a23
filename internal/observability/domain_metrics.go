package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybridge_translations_total",
			Help: "Total number of natural language to SQL translations by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	translationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querybridge_translation_latency_ms",
			Help:    "Completion backend latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybridge_executions_total",
			Help: "Total number of executed statements by outcome.",
		},
		[]string{"outcome"},
	)
	executionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querybridge_execution_latency_ms",
			Help:    "Statement execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	rowsReturnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querybridge_rows_returned_total",
			Help: "Total number of result rows returned to callers.",
		},
	)
	adminOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybridge_admin_operations_total",
			Help: "Total number of schema admin operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		translationsTotal,
		translationLatencyMs,
		executionsTotal,
		executionLatencyMs,
		rowsReturnedTotal,
		adminOperationsTotal,
	)
}

func ObserveTranslation(provider string, err error, elapsed time.Duration) {
	translationsTotal.WithLabelValues(provider, outcomeLabel(err)).Inc()
	translationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(rows int, err error, elapsed time.Duration) {
	executionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	executionLatencyMs.Observe(float64(elapsed.Milliseconds()))
	if rows > 0 {
		rowsReturnedTotal.Add(float64(rows))
	}
}

func ObserveAdminOperation(operation string, err error) {
	adminOperationsTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
