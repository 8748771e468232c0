package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "remittance_"

	resultSuccess = "success"
	resultError   = "error"
	resultEmpty   = "empty"
)

var (
	registerOnce sync.Once

	generateTotal   *prometheus.CounterVec
	generateLatency *prometheus.HistogramVec
	paymentsTotal   prometheus.Counter
	diagnostics     *prometheus.CounterVec
	lastSequence    prometheus.Gauge

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	notifyTotal *prometheus.CounterVec
)

// Init registers remittance metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		generateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "generate_total",
				Help: "Total remittance generate operations by result",
			},
			[]string{"result"},
		)
		generateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "generate_latency_seconds",
				Help:    "Remittance generate latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		paymentsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_total",
				Help: "Total payments encoded into remittance files",
			},
		)
		diagnostics = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "diagnostics_total",
				Help: "Total degraded fields by field name",
			},
			[]string{"field"},
		)
		lastSequence = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_sequence",
				Help: "Last file sequence number issued",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total remittance exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Remittance export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_total",
				Help: "Total webhook notifications by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			generateTotal,
			generateLatency,
			paymentsTotal,
			diagnostics,
			lastSequence,
			exportTotal,
			exportLatency,
			notifyTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveGenerate records generate latency and result.
func ObserveGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if generateTotal != nil {
		generateTotal.WithLabelValues(result).Inc()
	}
	if generateLatency != nil {
		generateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveFile records the payment count, sequence and diagnostics of a generated file.
func ObserveFile(sequence, payments int, byField map[string]int) {
	if paymentsTotal != nil && payments > 0 {
		paymentsTotal.Add(float64(payments))
	}
	if lastSequence != nil && sequence > 0 {
		lastSequence.Set(float64(sequence))
	}
	if diagnostics == nil {
		return
	}
	for field, count := range byField {
		if field == "" {
			field = "unknown"
		}
		diagnostics.WithLabelValues(field).Add(float64(count))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncNotify increments the webhook notification counter.
func IncNotify(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultEmpty   = resultEmpty
)
