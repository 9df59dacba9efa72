package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regvault_sync_attempts_total",
		Help: "Completed remote delivery attempts, by result.",
	}, []string{"result"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regvault_sync_duration_seconds",
		Help:    "Duration of remote delivery attempts.",
		Buckets: prometheus.DefBuckets,
	})

	saveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regvault_save_attempts_total",
		Help: "Record save attempts, by result.",
	}, []string{"result"})

	backupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regvault_backup_events_total",
		Help: "Backup snapshots created and restored.",
	}, []string{"event"})
)

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
