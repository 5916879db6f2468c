package tracer

import (
	"sync"

	"github.com/sshudler/libtdg/internal/graph"
)

// Barrier merges the arrivals of a team at one synchronization point into a
// single barrier vertex per round.
//
// Rounds are tagged with the arrival epoch of each thread: the n-th time a
// thread reaches the barrier it joins round n, no matter how far other
// threads have progressed. A fast thread entering round n+1 therefore never
// attaches to the vertex of round n. The first arrival of a round creates
// and publishes the vertex under mu; the round is dropped once teamSize
// arrivals were counted.
//
// Lock order: mu before any vertex adjacency lock.
type Barrier struct {
	g        *graph.Graph
	teamSize int
	obs      BarrierObserver

	mu     sync.Mutex
	rounds map[uint64]*round
}

type round struct {
	vertex  graph.Handle
	arrived int
}

// NewBarrier creates a barrier for a team of teamSize threads.
func NewBarrier(g *graph.Graph, teamSize int, obs BarrierObserver) *Barrier {
	return &Barrier{
		g:        g,
		teamSize: teamSize,
		obs:      obs,
		rounds:   make(map[uint64]*round),
	}
}

// Arrive connects from to the barrier vertex of round epoch, creating the
// vertex if this is the round's first arrival. It returns the vertex and
// whether this call created it.
func (b *Barrier) Arrive(epoch uint64, from graph.Handle) (graph.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rounds[epoch]
	if !ok {
		r = &round{vertex: b.g.NewVertex(graph.Barrier)}
		b.rounds[epoch] = r
	}
	b.g.Connect(from, r.vertex)
	r.arrived++
	if r.arrived >= b.teamSize {
		delete(b.rounds, epoch)
	}
	if b.obs != nil {
		b.obs.BarrierArrival(!ok)
	}
	return r.vertex, !ok
}

// Pending returns the number of rounds still waiting for arrivals.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rounds)
}
