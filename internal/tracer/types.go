package tracer

import (
	"time"

	"github.com/sshudler/libtdg/internal/graph"
)

// Clock reports the current time in milliseconds.
type Clock interface {
	Now() float64
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock measuring milliseconds since its creation.
func NewClock() Clock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Now() float64 {
	return float64(time.Since(c.start)) / float64(time.Millisecond)
}

// BarrierObserver is notified of every barrier arrival.
type BarrierObserver interface {
	BarrierArrival(created bool)
}

// Thread is the per-worker state shared by the tasks a worker executes.
// A Thread must only be used by one goroutine at a time.
type Thread struct {
	Num         int
	loopCounter uint64
}

// LoopCounter returns the number of worksharing loops the thread finished.
func (th *Thread) LoopCounter() uint64 { return th.loopCounter }

// Task tracks the vertex a unit of work is currently executing on. Methods
// of the Tracer taking a Task must be called from the goroutine running it.
type Task struct {
	current graph.Handle
	sink    graph.Handle // region sink of an implicit task
	thread  *Thread
	region  *Region
	ws      *worksharing

	barrier graph.Handle // merge vertex of the last barrier passed
	cont    graph.Handle // continuation created by that barrier
	epoch   uint64       // barrier arrivals so far

	children []*Task // explicit tasks created since the last taskwait
}

// Current returns the vertex the task is executing on.
func (t *Task) Current() graph.Handle { return t.current }

// Thread returns the thread executing the task, or nil.
func (t *Task) Thread() *Thread { return t.thread }

// Region is one parallel region and its team.
type Region struct {
	parent   *Task
	sink     graph.Handle
	teamSize int
	barrier  *Barrier
}

// Sink returns the vertex the team joins into when the region ends.
func (r *Region) Sink() graph.Handle { return r.sink }

// TeamSize returns the number of implicit tasks in the region.
func (r *Region) TeamSize() int { return r.teamSize }

type worksharing struct {
	start     graph.Handle
	sink      graph.Handle
	lastChunk graph.Handle
	sample    []int64 // counters read when lastChunk started
}
