package graph

import (
	"sync"
	"sync/atomic"
)

// Type tags the kind of schedulable unit a vertex stands for.
type Type int

const (
	RootTask Type = iota
	ImplicitTask
	WorksharingTask
	ChunkTask
	ExplicitTask
	Barrier
	TaskWait
)

var typeNames = [...]string{
	RootTask:        "ROOT_TASK",
	ImplicitTask:    "IMP_TASK",
	WorksharingTask: "WS_TASK",
	ChunkTask:       "CHUNK_TASK",
	ExplicitTask:    "EXP_TASK",
	Barrier:         "BARRIER",
	TaskWait:        "TASKWAIT",
}

// Graphviz X11 colour names, indexed by Type.
var fillColors = [...]string{
	RootTask:        "dimgray",
	ImplicitTask:    "darkgoldenrod1",
	WorksharingTask: "darkolivegreen3",
	ChunkTask:       "bisque",
	ExplicitTask:    "deepskyblue",
	Barrier:         "firebrick1",
	TaskWait:        "crimson",
}

// Types lists every vertex type in declaration order.
var Types = []Type{RootTask, ImplicitTask, WorksharingTask, ChunkTask, ExplicitTask, Barrier, TaskWait}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN"
	}
	return typeNames[t]
}

// FillColor returns the DOT fill colour used for vertices of this type.
func (t Type) FillColor() string {
	if t < 0 || int(t) >= len(fillColors) {
		return "white"
	}
	return fillColors[t]
}

// ParseType maps a type name such as "CHUNK_TASK" back to its Type.
func ParseType(s string) (Type, bool) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), true
		}
	}
	return 0, false
}

// Handle is the stable arena index of a vertex. Handles stay valid for the
// lifetime of the Graph, including after the vertex is retired.
type Handle int

// NoHandle marks the absence of a vertex.
const NoHandle Handle = -1

// Edge is a directed precedence relation between two vertices.
type Edge struct {
	Source Handle
	Target Handle
}

// Vertex is one work item, synchronization point, or synthetic merge/sink.
type Vertex struct {
	// id is written once under the registry lock before registered is set.
	id         int64
	registered atomic.Bool
	retired    atomic.Bool

	typ       Type
	totalTime float64 // ms
	lastTime  float64 // ms
	counters  []int64

	lower, upper int64
	loopCounter  uint64
	thread       int

	// Lock order: exitMu before the target's entryMu.
	exitMu  sync.Mutex
	exits   []Handle
	entryMu sync.Mutex
	entries []Handle

	// analysis scratch, touched only after tracing has finished
	visited  bool
	level    int
	critical bool
}

func (v *Vertex) ID() int64           { return v.id }
func (v *Vertex) Type() Type          { return v.typ }
func (v *Vertex) TotalTime() float64  { return v.totalTime }
func (v *Vertex) LastTime() float64   { return v.lastTime }
func (v *Vertex) Lower() int64        { return v.lower }
func (v *Vertex) Upper() int64        { return v.upper }
func (v *Vertex) LoopCounter() uint64 { return v.loopCounter }
func (v *Vertex) Thread() int         { return v.thread }
func (v *Vertex) Level() int          { return v.level }
func (v *Vertex) Critical() bool      { return v.critical }
func (v *Vertex) Registered() bool    { return v.registered.Load() }
func (v *Vertex) Retired() bool       { return v.retired.Load() }

// Counters returns the attached counter samples. The slice must not be modified.
func (v *Vertex) Counters() []int64 { return v.counters }

// Bounds returns the iteration range of a chunk or loop vertex.
func (v *Vertex) Bounds() (int64, int64) { return v.lower, v.upper }

// Observer receives structural events as the graph is mutated. It is called
// from the mutating goroutine and must be safe for concurrent use.
type Observer interface {
	VertexCreated(t Type)
	EdgeConnected()
	EdgeDisconnected()
	VertexRetired(t Type)
}

type nopObserver struct{}

func (nopObserver) VertexCreated(Type) {}
func (nopObserver) EdgeConnected()     {}
func (nopObserver) EdgeDisconnected()  {}
func (nopObserver) VertexRetired(Type) {}
