package saves

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "savestore"

// metrics holds the engine's Prometheus collectors. With a nil Registerer
// the collectors work but are not exported.
type metrics struct {
	// saves counts SaveFile calls. Labels: status (ok, error)
	saves *prometheus.CounterVec

	// backups counts backup writes. Labels: kind (default, indexed), status (ok, error)
	backups *prometheus.CounterVec

	// recoveries counts completed recovery cascades.
	// Labels: outcome (default_backup, indexed_backup, hard_reset)
	recoveries *prometheus.CounterVec

	// timeTravel counts clamped future timestamps.
	timeTravel prometheus.Counter

	// saveDuration observes SaveFile latency.
	saveDuration prometheus.Histogram
}

const (
	statusOK    = "ok"
	statusError = "error"

	kindDefault = "default"
	kindIndexed = "indexed"

	outcomeDefaultBackup = "default_backup"
	outcomeIndexedBackup = "indexed_backup"
	outcomeHardReset     = "hard_reset"
)

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "saves_total",
			Help:      "Total SaveFile calls by status",
		}, []string{"status"}),
		backups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backups_total",
			Help:      "Total backup writes by kind and status",
		}, []string{"kind", "status"}),
		recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recoveries_total",
			Help:      "Total recovery cascades by outcome",
		}, []string{"outcome"}),
		timeTravel: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "time_travel_total",
			Help:      "Total persisted timestamps found in the future and clamped",
		}),
		saveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "save_duration_seconds",
			Help:      "SaveFile duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

func (m *metrics) backup(kind string, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}

	m.backups.WithLabelValues(kind, status).Inc()
}
