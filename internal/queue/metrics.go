package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the offline queue.
type Metrics struct {
	Depth         prometheus.Gauge
	Enqueued      prometheus.Counter
	Delivered     prometheus.Counter
	Dropped       prometheus.Counter
	Drains        prometheus.Counter
	DrainDuration prometheus.Histogram
}

// NewMetrics creates and registers queue metrics. Registration happens once
// globally to avoid duplicate-collector panics when multiple stores exist.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Depth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "fieldtag_queue_depth",
				Help: "Current number of submissions pending upload",
			}),
			Enqueued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "fieldtag_queue_enqueued_total",
				Help: "Total submissions placed on the offline queue",
			}),
			Delivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "fieldtag_queue_delivered_total",
				Help: "Total queued submissions delivered by a drain",
			}),
			Dropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "fieldtag_queue_dropped_total",
				Help: "Total queued submissions dropped after exhausting retries",
			}),
			Drains: promauto.NewCounter(prometheus.CounterOpts{
				Name: "fieldtag_queue_drains_total",
				Help: "Total completed drain passes",
			}),
			DrainDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "fieldtag_queue_drain_duration_seconds",
				Help:    "Duration of drain passes in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			}),
		}
	})
	return globalMetrics
}
