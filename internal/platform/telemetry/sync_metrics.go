package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "quote_sync"

// SyncMetrics exposes sync cycle measurements as Prometheus collectors.
type SyncMetrics struct {
	cycles       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	conflicts    prometheus.Counter
	pushed       prometheus.Counter
	pushFailures prometheus.Counter
	storeSize    prometheus.Gauge
}

// NewSyncMetrics creates the collectors and registers them with reg. A nil
// reg uses the default registry served on /-/metrics.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &SyncMetrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Sync cycles by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"result"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conflicts_total",
			Help:      "Conflicts settled during reconciliation.",
		}),
		pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pushed_total",
			Help:      "Local quotes uploaded to the server.",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "push_failures_total",
			Help:      "Uploads that failed and stay flagged.",
		}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "store_quotes",
			Help:      "Quotes held by the local store after the last cycle.",
		}),
	}

	for _, c := range []prometheus.Collector{m.cycles, m.duration, m.conflicts, m.pushed, m.pushFailures, m.storeSize} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveCycle counts a cycle and records its duration. Skipped cycles are
// counted but not timed.
func (m *SyncMetrics) ObserveCycle(result string, d time.Duration) {
	m.cycles.WithLabelValues(result).Inc()

	if d > 0 {
		m.duration.WithLabelValues(result).Observe(d.Seconds())
	}
}

func (m *SyncMetrics) AddConflicts(n int)    { m.conflicts.Add(float64(n)) }
func (m *SyncMetrics) AddPushed(n int)       { m.pushed.Add(float64(n)) }
func (m *SyncMetrics) AddPushFailures(n int) { m.pushFailures.Add(float64(n)) }
func (m *SyncMetrics) SetStoreSize(n int)    { m.storeSize.Set(float64(n)) }
