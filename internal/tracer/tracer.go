// Package tracer turns execution events of a parallel program (regions,
// implicit and explicit tasks, barriers, worksharing loops and their chunks)
// into vertices and edges of a task dependency graph.
package tracer

import (
	"log/slog"
	"sync"

	"github.com/sshudler/libtdg/internal/counters"
	"github.com/sshudler/libtdg/internal/graph"
)

// Tracer records events into one Graph. It is safe for concurrent use as
// long as every Task is driven by a single goroutine at a time.
type Tracer struct {
	g        *graph.Graph
	clock    Clock
	counters *counters.Set
	barriers BarrierObserver
	log      *slog.Logger

	mu   sync.Mutex
	root *Task
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(tr *Tracer) { tr.clock = c }
}

// WithCounters samples the given counters around every chunk.
func WithCounters(s *counters.Set) Option {
	return func(tr *Tracer) { tr.counters = s }
}

// WithBarrierObserver reports barrier arrivals to obs.
func WithBarrierObserver(obs BarrierObserver) Option {
	return func(tr *Tracer) { tr.barriers = obs }
}

// WithLogger sets the logger used for per-event debug output.
func WithLogger(l *slog.Logger) Option {
	return func(tr *Tracer) { tr.log = l }
}

// New creates a Tracer recording into g.
func New(g *graph.Graph, opts ...Option) *Tracer {
	tr := &Tracer{
		g:     g,
		clock: NewClock(),
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(tr)
	}
	return tr
}

// Graph returns the graph being recorded.
func (tr *Tracer) Graph() *graph.Graph { return tr.g }

// newVertex creates a vertex of type t, connects it from parent when parent
// is valid, and opens its time interval.
func (tr *Tracer) newVertex(t graph.Type, parent graph.Handle, now float64) graph.Handle {
	h := tr.g.NewVertex(t)
	if parent != graph.NoHandle {
		tr.g.Connect(parent, h)
	}
	tr.g.Resume(h, now)
	return h
}

// InitialTask starts the program's root task on thread th.
func (tr *Tracer) InitialTask(th *Thread) *Task {
	h := tr.newVertex(graph.RootTask, graph.NoHandle, tr.clock.Now())
	t := &Task{current: h, thread: th, barrier: graph.NoHandle, cont: graph.NoHandle}
	tr.mu.Lock()
	tr.root = t
	tr.mu.Unlock()
	tr.log.Debug("initial task", "vertex", tr.g.Vertex(h).ID())
	return t
}

// ParallelBegin suspends parent and opens a region for teamSize threads.
func (tr *Tracer) ParallelBegin(parent *Task, teamSize int) *Region {
	tr.g.AddTime(parent.current, tr.clock.Now())
	r := &Region{
		parent:   parent,
		sink:     tr.g.NewPlaceholder(graph.ImplicitTask),
		teamSize: teamSize,
		barrier:  NewBarrier(tr.g, teamSize, tr.barriers),
	}
	tr.log.Debug("parallel begin", "parent", tr.g.Vertex(parent.current).ID(), "team", teamSize)
	return r
}

// ParallelEnd joins the region: its parent continues on the region sink.
func (tr *Tracer) ParallelEnd(r *Region) {
	tr.g.Register(r.sink)
	r.parent.current = r.sink
	r.parent.barrier, r.parent.cont = graph.NoHandle, graph.NoHandle
	tr.g.Resume(r.sink, tr.clock.Now())
	tr.log.Debug("parallel end", "sink", tr.g.Vertex(r.sink).ID())
}

// ImplicitTaskBegin starts the implicit task of thread th in region r.
func (tr *Tracer) ImplicitTaskBegin(r *Region, th *Thread) *Task {
	h := tr.newVertex(graph.ImplicitTask, r.parent.current, tr.clock.Now())
	tr.log.Debug("implicit task begin", "vertex", tr.g.Vertex(h).ID(), "thread", th.Num)
	return &Task{
		current: h,
		sink:    r.sink,
		thread:  th,
		region:  r,
		barrier: graph.NoHandle,
		cont:    graph.NoHandle,
	}
}

// ImplicitTaskEnd connects the task to its region sink. When the task ends
// right after a barrier without having done anything else, the idle
// continuation vertex is dropped and the barrier itself is joined to the sink.
func (tr *Tracer) ImplicitTaskEnd(t *Task) {
	if t.cont != graph.NoHandle && t.current == t.cont && len(tr.g.Exits(t.cont)) == 0 {
		tr.g.Disconnect(t.barrier, t.cont)
		tr.g.Retire(t.cont)
		tr.g.Connect(t.barrier, t.sink)
	} else {
		tr.g.AddTime(t.current, tr.clock.Now())
		tr.g.Connect(t.current, t.sink)
	}
	tr.log.Debug("implicit task end", "thread", t.thread.Num)
}

// TaskCreate creates an explicit task whose vertex depends on the creating
// task's current vertex.
func (tr *Tracer) TaskCreate(parent *Task) *Task {
	h := tr.newVertex(graph.ExplicitTask, parent.current, tr.clock.Now())
	child := &Task{
		current: h,
		thread:  parent.thread,
		region:  parent.region,
		barrier: graph.NoHandle,
		cont:    graph.NoHandle,
	}
	parent.children = append(parent.children, child)
	tr.log.Debug("task create", "parent", tr.g.Vertex(parent.current).ID(), "vertex", tr.g.Vertex(h).ID())
	return child
}

// TaskSchedule switches execution from prior to next on thread th. Either
// task may be nil. prior stops accumulating time and next starts.
func (tr *Tracer) TaskSchedule(prior, next *Task, th *Thread) {
	now := tr.clock.Now()
	if prior != nil {
		tr.g.AddTime(prior.current, now)
	}
	if next != nil {
		if th != nil {
			next.thread = th
		}
		tr.g.Resume(next.current, now)
	}
}

// TaskWait joins the explicit tasks created by t since its last taskwait.
// The caller must ensure those tasks have finished. t continues on the new
// taskwait vertex. Time spent blocked on the children belongs to no vertex:
// callers schedule t out with TaskSchedule(t, nil, nil) before blocking and
// back in afterwards.
func (tr *Tracer) TaskWait(t *Task) {
	if len(t.children) == 0 {
		return
	}
	now := tr.clock.Now()
	tr.g.AddTime(t.current, now)
	w := tr.newVertex(graph.TaskWait, t.current, now)
	for _, c := range t.children {
		tr.g.Connect(c.current, w)
	}
	t.children = t.children[:0]
	t.current = w
	tr.log.Debug("taskwait", "vertex", tr.g.Vertex(w).ID())
}

// BarrierBegin records the arrival of t at its region's barrier. All team
// members of the same round are merged into one barrier vertex, and t
// continues on a fresh vertex depending on it. Teams of one are ignored.
func (tr *Tracer) BarrierBegin(t *Task) {
	if t.region == nil || t.region.teamSize <= 1 {
		return
	}
	now := tr.clock.Now()
	tr.g.AddTime(t.current, now)

	epoch := t.epoch
	t.epoch++
	b, created := t.region.barrier.Arrive(epoch, t.current)

	t.barrier = b
	t.cont = tr.newVertex(graph.ImplicitTask, b, now)
	t.current = t.cont
	tr.log.Debug("barrier", "vertex", tr.g.Vertex(b).ID(), "thread", t.thread.Num, "epoch", epoch, "created", created)
}

// BarrierEnd resumes t once the whole team has arrived. Waiting time is not
// attributed to any vertex.
func (tr *Tracer) BarrierEnd(t *Task) {
	if t.region == nil || t.region.teamSize <= 1 {
		return
	}
	tr.g.Resume(t.current, tr.clock.Now())
}

// LoopBegin starts a worksharing loop over [lower, upper] on task t.
func (tr *Tracer) LoopBegin(t *Task, lower, upper int64) {
	now := tr.clock.Now()
	tr.g.AddTime(t.current, now)
	start := tr.newVertex(graph.WorksharingTask, t.current, now)
	tr.g.SetBounds(start, lower, upper)
	t.ws = &worksharing{
		start:     start,
		sink:      tr.g.NewVertex(graph.ImplicitTask),
		lastChunk: graph.NoHandle,
	}
	t.cont = graph.NoHandle
	tr.log.Debug("loop begin", "vertex", tr.g.Vertex(start).ID(), "lower", lower, "upper", upper)
}

// Chunk reports that t was handed the iterations [lower, upper]. The
// previous chunk of t ends here. last marks the final scheduling request of
// the thread, which carries no iterations. Chunks outside a loop are ignored.
func (tr *Tracer) Chunk(t *Task, lower, upper int64, last bool) {
	ws := t.ws
	if ws == nil {
		return
	}
	if ws.lastChunk != graph.NoHandle {
		if !last {
			tr.endChunk(ws)
		}
	} else {
		tr.g.AddTime(ws.start, tr.clock.Now())
	}
	if last {
		return
	}

	c := tr.newVertex(graph.ChunkTask, ws.start, tr.clock.Now())
	tr.g.SetBounds(c, lower, upper)
	tr.g.SetLoopInfo(c, t.thread.loopCounter, t.thread.Num)
	tr.g.Connect(c, ws.sink)
	ws.lastChunk = c
	ws.sample = tr.counters.Read()
}

func (tr *Tracer) endChunk(ws *worksharing) {
	if tr.counters.Len() > 0 {
		tr.g.AttachCounters(ws.lastChunk, counters.Delta(ws.sample, tr.counters.Read()))
	}
	tr.g.AddTime(ws.lastChunk, tr.clock.Now())
}

// LoopEnd closes the loop of t; the task continues on the loop's sink.
// Without an open loop it does nothing.
func (tr *Tracer) LoopEnd(t *Task) {
	ws := t.ws
	if ws == nil {
		return
	}
	if ws.lastChunk != graph.NoHandle {
		tr.endChunk(ws)
	} else {
		tr.g.AddTime(ws.start, tr.clock.Now())
		tr.g.Connect(ws.start, ws.sink)
	}
	t.current = ws.sink
	tr.g.Resume(ws.sink, tr.clock.Now())
	t.ws = nil
	t.thread.loopCounter++
	tr.log.Debug("loop end", "sink", tr.g.Vertex(ws.sink).ID(), "thread", t.thread.Num)
}

// Finalize closes the interval of the vertex the initial task ends on and
// returns the recorded graph. No events may be recorded afterwards.
func (tr *Tracer) Finalize() *graph.Graph {
	tr.mu.Lock()
	root := tr.root
	tr.mu.Unlock()
	if root != nil {
		tr.g.AddTime(root.current, tr.clock.Now())
	}
	tr.log.Debug("finalize", "vertices", tr.g.Len())
	return tr.g
}
