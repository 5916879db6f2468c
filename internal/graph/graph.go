package graph

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Graph owns every vertex of one trace. Vertices live in an arena and are
// addressed by Handle; retired vertices keep their slot so that handles held
// by other goroutines never dangle.
type Graph struct {
	nextID atomic.Int64

	arenaMu sync.RWMutex
	arena   []*Vertex

	mu       sync.Mutex // guards registry
	registry map[int64]Handle

	obs Observer
}

// Option configures a Graph.
type Option func(*Graph)

// WithObserver attaches an Observer notified of structural changes.
func WithObserver(o Observer) Option {
	return func(g *Graph) {
		if o != nil {
			g.obs = o
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		registry: make(map[int64]Handle),
		obs:      nopObserver{},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Graph) vertex(h Handle) *Vertex {
	g.arenaMu.RLock()
	defer g.arenaMu.RUnlock()
	return g.arena[h]
}

func (g *Graph) alloc(t Type) Handle {
	v := &Vertex{typ: t}
	g.arenaMu.Lock()
	h := Handle(len(g.arena))
	g.arena = append(g.arena, v)
	g.arenaMu.Unlock()
	g.obs.VertexCreated(t)
	return h
}

// NewVertex allocates a vertex of the given type, assigns it the next id
// and registers it.
func (g *Graph) NewVertex(t Type) Handle {
	h := g.alloc(t)
	g.ensureRegistered(h)
	return h
}

// NewPlaceholder allocates a vertex without an identity. It receives an id
// the first time it takes part in Connect, or when passed to Register.
func (g *Graph) NewPlaceholder(t Type) Handle {
	return g.alloc(t)
}

// Register gives a placeholder its identity. It is a no-op for vertices that
// are already registered.
func (g *Graph) Register(h Handle) int64 {
	g.ensureRegistered(h)
	return g.vertex(h).id
}

func (g *Graph) ensureRegistered(h Handle) {
	v := g.vertex(h)
	if v.registered.Load() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if v.registered.Load() {
		return
	}
	v.id = g.nextID.Add(1)
	g.registry[v.id] = h
	v.registered.Store(true)
}

// AddNode registers h under an explicit id. Registering a live id twice is a
// caller error; the later registration wins. The id counter is advanced past
// id so that generated ids never collide with it.
func (g *Graph) AddNode(id int64, h Handle) {
	v := g.vertex(h)
	g.mu.Lock()
	defer g.mu.Unlock()
	v.id = id
	g.registry[id] = h
	v.registered.Store(true)
	for {
		cur := g.nextID.Load()
		if cur >= id || g.nextID.CompareAndSwap(cur, id) {
			break
		}
	}
}

// RemoveNode retires the vertex registered under id. Edges are left alone;
// the caller disconnects the vertex first. Unknown ids are ignored.
func (g *Graph) RemoveNode(id int64) {
	g.mu.Lock()
	h, ok := g.registry[id]
	if ok {
		delete(g.registry, id)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	v := g.vertex(h)
	v.retired.Store(true)
	g.obs.VertexRetired(v.typ)
}

// Retire unregisters the vertex behind h. See RemoveNode.
func (g *Graph) Retire(h Handle) {
	v := g.vertex(h)
	if !v.registered.Load() {
		v.retired.Store(true)
		return
	}
	g.RemoveNode(v.id)
}

// Lookup returns the handle registered under id. Retired ids are not found.
func (g *Graph) Lookup(id int64) (Handle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.registry[id]
	return h, ok
}

// Vertex returns the vertex behind h for reading.
func (g *Graph) Vertex(h Handle) *Vertex {
	return g.vertex(h)
}

// Len returns the number of registered vertices.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.registry)
}

// Vertices returns the registered vertices in ascending id order.
func (g *Graph) Vertices() []Handle {
	g.mu.Lock()
	ids := make([]int64, 0, len(g.registry))
	for id := range g.registry {
		ids = append(ids, id)
	}
	handles := make([]Handle, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handles = append(handles, g.registry[id])
	}
	g.mu.Unlock()
	return handles
}

// Connect adds the edge source->target unless it already exists. The source's
// exit lock is taken before the target's entry lock, and the duplicate check
// happens under both, so concurrent callers never create the same edge twice.
// Reports whether an edge was added.
func (g *Graph) Connect(source, target Handle) bool {
	g.ensureRegistered(source)
	g.ensureRegistered(target)
	src, dst := g.vertex(source), g.vertex(target)

	src.exitMu.Lock()
	defer src.exitMu.Unlock()
	if slices.Contains(src.exits, target) {
		return false
	}
	dst.entryMu.Lock()
	src.exits = append(src.exits, target)
	dst.entries = append(dst.entries, source)
	dst.entryMu.Unlock()

	g.obs.EdgeConnected()
	return true
}

// Disconnect removes the edge source->target from both adjacency lists using
// the same lock order as Connect. Missing edges are ignored.
func (g *Graph) Disconnect(source, target Handle) bool {
	src, dst := g.vertex(source), g.vertex(target)

	src.exitMu.Lock()
	defer src.exitMu.Unlock()
	i := slices.Index(src.exits, target)
	if i < 0 {
		return false
	}
	dst.entryMu.Lock()
	src.exits = slices.Delete(src.exits, i, i+1)
	if j := slices.Index(dst.entries, source); j >= 0 {
		dst.entries = slices.Delete(dst.entries, j, j+1)
	}
	dst.entryMu.Unlock()

	g.obs.EdgeDisconnected()
	return true
}

// IsConnected reports whether the edge source->target exists.
func (g *Graph) IsConnected(source, target Handle) bool {
	src := g.vertex(source)
	src.exitMu.Lock()
	defer src.exitMu.Unlock()
	return slices.Contains(src.exits, target)
}

// Entries returns a copy of the predecessors of h in insertion order.
func (g *Graph) Entries(h Handle) []Handle {
	v := g.vertex(h)
	v.entryMu.Lock()
	defer v.entryMu.Unlock()
	return slices.Clone(v.entries)
}

// Exits returns a copy of the successors of h in insertion order.
func (g *Graph) Exits(h Handle) []Handle {
	v := g.vertex(h)
	v.exitMu.Lock()
	defer v.exitMu.Unlock()
	return slices.Clone(v.exits)
}

// SetEntryOrder reorders the predecessors of h to match order, which must
// hold exactly the current predecessors. It is used to restore a recorded
// graph, where the entry order decides ties in the critical path. Reports
// whether the order was applied.
func (g *Graph) SetEntryOrder(h Handle, order []Handle) bool {
	v := g.vertex(h)
	v.entryMu.Lock()
	defer v.entryMu.Unlock()
	if len(order) != len(v.entries) {
		return false
	}
	for _, p := range order {
		if !slices.Contains(v.entries, p) {
			return false
		}
	}
	v.entries = slices.Clone(order)
	return true
}

// Edges returns every edge leaving a registered vertex, grouped by source in
// id order and by insertion order within a source.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, h := range g.Vertices() {
		for _, t := range g.Exits(h) {
			edges = append(edges, Edge{Source: h, Target: t})
		}
	}
	return edges
}

// EdgeCount returns the number of edges leaving registered vertices.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, h := range g.Vertices() {
		v := g.vertex(h)
		v.exitMu.Lock()
		n += len(v.exits)
		v.exitMu.Unlock()
	}
	return n
}

// Resume opens an active-time interval on h at now (ms).
func (g *Graph) Resume(h Handle, now float64) {
	g.vertex(h).lastTime = now
}

// AddTime closes the interval opened by the last Resume or AddTime and
// accumulates it. Only the goroutine executing h may call it.
func (g *Graph) AddTime(h Handle, now float64) {
	v := g.vertex(h)
	v.totalTime += now - v.lastTime
	v.lastTime = now
}

// SetTotalTime overwrites the accumulated time of h.
func (g *Graph) SetTotalTime(h Handle, ms float64) {
	g.vertex(h).totalTime = ms
}

// AttachCounters stores a copy of the counter samples taken for h.
func (g *Graph) AttachCounters(h Handle, vals []int64) {
	g.vertex(h).counters = slices.Clone(vals)
}

// SetBounds records the iteration range of a worksharing or chunk vertex.
func (g *Graph) SetBounds(h Handle, lower, upper int64) {
	v := g.vertex(h)
	v.lower, v.upper = lower, upper
}

// SetLoopInfo records which loop instance and thread a chunk belongs to.
func (g *Graph) SetLoopInfo(h Handle, loopCounter uint64, thread int) {
	v := g.vertex(h)
	v.loopCounter, v.thread = loopCounter, thread
}

// MarkCritical flags h as lying on the critical path.
func (g *Graph) MarkCritical(h Handle) {
	g.vertex(h).critical = true
}

// resetAnalysis clears the scratch fields of every arena vertex.
func (g *Graph) resetAnalysis() {
	g.arenaMu.RLock()
	defer g.arenaMu.RUnlock()
	for _, v := range g.arena {
		v.visited = false
		v.level = 0
		v.critical = false
	}
}
