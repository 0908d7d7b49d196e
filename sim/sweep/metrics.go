package sweep

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports sweep progress. A nil *Metrics records nothing.
type Metrics struct {
	Replicas      *prometheus.CounterVec
	PointDuration prometheus.Histogram
}

// NewMetrics creates the sweep collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Replicas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contact_sim",
			Name:      "replicas_total",
			Help:      "Replicas finished, by outcome.",
		}, []string{"outcome"}),
		PointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contact_sim",
			Name:      "point_duration_seconds",
			Help:      "Wall time spent on one (lambda, alpha) grid point.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Replicas, m.PointDuration)
	}
	return m
}

func (m *Metrics) observeReplica(o Outcome) {
	if m == nil {
		return
	}
	m.Replicas.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observePoint(d time.Duration) {
	if m == nil {
		return
	}
	m.PointDuration.Observe(d.Seconds())
}
