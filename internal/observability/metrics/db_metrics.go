package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	gauges := []struct {
		name  string
		help  string
		query string
	}{
		{"rooms", "Registered rooms", "SELECT COUNT(*) FROM rooms"},
		{"rooms_fire_detected", "Rooms with fire detected", "SELECT COUNT(*) FROM room_safety_status WHERE fire_detected"},
		{"rooms_gas_detected", "Rooms with gas detected", "SELECT COUNT(*) FROM room_safety_status WHERE gas_detected"},
		{"valves_closed", "Rooms with the gas valve closed", "SELECT COUNT(*) FROM room_safety_status WHERE NOT valve_on"},
	}
	for _, g := range gauges {
		query := g.query
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + g.name,
				Help: g.help,
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.String("query", query), zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
