// Package metrics exposes Prometheus instrumentation for the resource
// tree and its pools. It is read-only with respect to the core: the
// tree never blocks on a metrics call, and nothing here can fail an
// operation (spec.md's "Non-goals" place observability infrastructure
// itself out of the core, but the ambient stack still gets real
// instrumentation, the way a production service would).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/resource"
	"github.com/flowmesh/datahub/internal/tree"
)

// Registry bundles the gauges and counters a running daemon exports.
type Registry struct {
	EntriesByKind  *prometheus.GaugeVec
	PoolLive       *prometheus.GaugeVec
	PoolCapacity   *prometheus.GaugeVec
	RejectedPushes *prometheus.CounterVec
}

// New constructs and registers the metric families against reg (pass
// prometheus.NewRegistry() in tests, prometheus.DefaultRegisterer in
// production).
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		EntriesByKind: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datahub",
			Name:      "entries",
			Help:      "Live resource tree entries by kind.",
		}, []string{"kind"}),
		PoolLive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datahub",
			Name:      "pool_live",
			Help:      "Live allocations per fixed pool.",
		}, []string{"pool"}),
		PoolCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datahub",
			Name:      "pool_capacity",
			Help:      "Configured capacity per fixed pool.",
		}, []string{"pool"}),
		RejectedPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datahub",
			Name:      "rejected_pushes_total",
			Help:      "Pushes rejected, by error code.",
		}, []string{"code"}),
	}
	reg.MustRegister(m.EntriesByKind, m.PoolLive, m.PoolCapacity, m.RejectedPushes)
	return m
}

// ObservePush records the outcome of a single push for the rejected-
// pushes counter. err == nil does not increment anything.
func (m *Registry) ObservePush(err error) {
	if err == nil {
		return
	}
	m.RejectedPushes.WithLabelValues(apierr.CodeOf(err).String()).Inc()
}

// RecordPoolStats sets the live/capacity gauges for a named pool.
func (m *Registry) RecordPoolStats(pool string, live, capacity int) {
	m.PoolLive.WithLabelValues(pool).Set(float64(live))
	m.PoolCapacity.WithLabelValues(pool).Set(float64(capacity))
}

// RefreshTreeShape recomputes the EntriesByKind gauges by walking t.
// Intended to be called periodically (e.g. by an admin /metrics
// scrape handler), not on every mutation.
func RefreshTreeShape(m *Registry, t *tree.Tree) {
	counts := map[string]int{
		tree.KindPlaceholder.String():  0,
		tree.KindInput.String():        0,
		tree.KindOutput.String():       0,
		tree.KindObservation.String(): 0,
	}
	t.ForEachResource(func(_ string, k tree.Kind, _ resource.Handle) {
		counts[k.String()]++
	})
	for kind, n := range counts {
		m.EntriesByKind.WithLabelValues(kind).Set(float64(n))
	}
}
