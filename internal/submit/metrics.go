package submit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the submission pipeline.
type Metrics struct {
	// Submissions counts settled submissions by terminal state.
	Submissions *prometheus.CounterVec

	// Recoveries counts gateway-recovery lookups by result.
	Recoveries *prometheus.CounterVec
}

// NewMetrics creates and registers pipeline metrics, once globally.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Submissions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fieldtag_submissions_total",
					Help: "Total submissions by terminal state",
				},
				[]string{"state"}, // confirmed, recovered, queued, rejected
			),
			Recoveries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fieldtag_recoveries_total",
					Help: "Total gateway-recovery lookups by result",
				},
				[]string{"result"}, // matched, no_match, lookup_failed
			),
		}
	})
	return globalMetrics
}
