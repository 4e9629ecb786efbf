package diskcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors that back spec.md §7's
// "statistics surface" (update count, queue depth, error count). A nil
// *Metrics is valid everywhere in this package and simply records nothing,
// so callers that don't want Prometheus wiring can leave Config.Metrics
// unset.
type Metrics struct {
	UpdateTotal        prometheus.Counter
	GetTotal           prometheus.Counter
	RemoveTotal        prometheus.Counter
	PurgatoryHitTotal  prometheus.Counter
	BackendErrorsTotal *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	PurgatorySize      prometheus.Gauge
}

// NewMetrics registers the disk cache's collectors against reg. A nil reg
// gets a fresh prometheus.NewRegistry rather than the global
// DefaultRegisterer, so constructing more than one Cache (e.g. across
// table-driven tests) never panics on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdateTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: `diskcache_update_total`,
			Help: `Total number of Update calls accepted.`,
		}),
		GetTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: `diskcache_get_total`,
			Help: `Total number of Get calls.`,
		}),
		RemoveTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: `diskcache_remove_total`,
			Help: `Total number of Remove calls whose backend remove succeeded.`,
		}),
		PurgatoryHitTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: `diskcache_purgatory_hit_total`,
			Help: `Total number of Get calls satisfied by cancelling a pending write.`,
		}),
		BackendErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: `diskcache_backend_errors_total`,
			Help: `Total number of backend errors observed, by kind.`,
		}, []string{`kind`}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: `diskcache_queue_depth`,
			Help: `Number of events currently buffered in the event queue.`,
		}),
		PurgatorySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: `diskcache_purgatory_size`,
			Help: `Number of entries currently staged in the purgatory.`,
		}),
	}
}

func (m *Metrics) observeUpdate() {
	if m == nil {
		return
	}
	m.UpdateTotal.Inc()
}

func (m *Metrics) observeGet(purgatoryHit bool) {
	if m == nil {
		return
	}
	m.GetTotal.Inc()
	if purgatoryHit {
		m.PurgatoryHitTotal.Inc()
	}
}

func (m *Metrics) observeRemove() {
	if m == nil {
		return
	}
	m.RemoveTotal.Inc()
}

func (m *Metrics) observeBackendError(kind string) {
	if m == nil {
		return
	}
	m.BackendErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) setPurgatorySize(n int) {
	if m == nil {
		return
	}
	m.PurgatorySize.Set(float64(n))
}
