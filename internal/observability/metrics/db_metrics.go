package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "files_count",
			Help: "Remittance files recorded",
		},
		func() float64 {
			return queryValue(db, logger, "SELECT COUNT(*) FROM remittances")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "stored_sequence",
			Help: "Current value of the persisted file sequence",
		},
		func() float64 {
			return queryValue(db, logger, "SELECT COALESCE(MAX(value), 0) FROM remittance_sequences")
		},
	))
}

func queryValue(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if value < 0 {
		return 0
	}
	return float64(value)
}
