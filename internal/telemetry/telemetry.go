// Package telemetry exports structural graph events as Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sshudler/libtdg/internal/graph"
)

// Metrics counts what happens to a graph while it is traced. It implements
// graph.Observer and tracer.BarrierObserver.
type Metrics struct {
	// VerticesCreated counts allocated vertices, labelled by vertex type
	// (ROOT_TASK, CHUNK_TASK, ...). Placeholders are counted when allocated.
	VerticesCreated *prometheus.CounterVec

	// VerticesRetired counts vertices removed from the registry, by type.
	VerticesRetired *prometheus.CounterVec

	EdgesConnected    prometheus.Counter
	EdgesDisconnected prometheus.Counter

	// BarrierArrivals counts arrivals at barriers; BarrierRounds counts the
	// merge vertices they produced.
	BarrierArrivals prometheus.Counter
	BarrierRounds   prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VerticesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tdg",
			Name:      "vertices_created_total",
			Help:      "Vertices allocated in the task dependency graph, by type.",
		}, []string{"type"}),
		VerticesRetired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tdg",
			Name:      "vertices_retired_total",
			Help:      "Vertices removed from the registry, by type.",
		}, []string{"type"}),
		EdgesConnected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tdg",
			Name:      "edges_connected_total",
			Help:      "Edges added to the graph.",
		}),
		EdgesDisconnected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tdg",
			Name:      "edges_disconnected_total",
			Help:      "Edges removed from the graph.",
		}),
		BarrierArrivals: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tdg",
			Name:      "barrier_arrivals_total",
			Help:      "Thread arrivals at team barriers.",
		}),
		BarrierRounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tdg",
			Name:      "barrier_rounds_total",
			Help:      "Barrier merge vertices created.",
		}),
	}
}

func (m *Metrics) VertexCreated(t graph.Type) {
	m.VerticesCreated.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) VertexRetired(t graph.Type) {
	m.VerticesRetired.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) EdgeConnected()    { m.EdgesConnected.Inc() }
func (m *Metrics) EdgeDisconnected() { m.EdgesDisconnected.Inc() }

func (m *Metrics) BarrierArrival(created bool) {
	m.BarrierArrivals.Inc()
	if created {
		m.BarrierRounds.Inc()
	}
}
