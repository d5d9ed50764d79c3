package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the sync counters exported on the metrics endpoint. Each
// instance registers on its own registerer so tests stay isolated.
type Metrics struct {
	Pushed       prometheus.Counter
	Pulled       prometheus.Counter
	Conflicts    prometheus.Counter
	Resolved     *prometheus.CounterVec
	Retries      prometheus.Counter
	Dropped      prometheus.Counter
	QueueDepth   prometheus.Gauge
	PassDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		Pushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tether_sync_pushed_total",
			Help: "Records pushed to the remote store",
		}),
		Pulled: factory.NewCounter(prometheus.CounterOpts{
			Name: "tether_sync_pulled_total",
			Help: "Remote documents applied locally",
		}),
		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tether_sync_conflicts_detected_total",
			Help: "Conflicts detected during push or pull",
		}),
		Resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_sync_conflicts_resolved_total",
			Help: "Conflicts resolved by choice",
		}, []string{"choice"}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "tether_sync_queue_retries_total",
			Help: "Queued operations rescheduled after a failure",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tether_sync_queue_dropped_total",
			Help: "Queued operations dropped after exhausting retries",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tether_sync_queue_depth",
			Help: "Operations waiting in the queue after the last drain",
		}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tether_sync_pass_duration_seconds",
			Help:    "Duration of one sync pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
	}
}
