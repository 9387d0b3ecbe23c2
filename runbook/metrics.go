package runbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	units = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "runbook",
		Subsystem: "tracking",
		Name:      "units",
		Help:      "Number of units by lifecycle status",
	}, []string{"runbook", "cluster", "status"})

	checkpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runbook",
		Subsystem: "tracking",
		Name:      "checkpoints",
		Help:      "Progress document saves",
	}, []string{"runbook", "cluster"})
)

// ObserveTracking updates gauges from progress document
func ObserveTracking(t *Tracking) {
	counts := t.CountByStatus()
	for _, status := range StatusOrder {
		units.WithLabelValues(t.Runbook, t.Cluster, string(status)).Set(float64(counts[status]))
	}
	checkpoints.WithLabelValues(t.Runbook, t.Cluster).Inc()
}
