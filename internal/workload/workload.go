// Package workload contains small parallel programs that drive the tracer
// the way an instrumented runtime would: teams of goroutines executing
// parallel regions, worksharing loops, explicit tasks and barriers.
package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sshudler/libtdg/internal/tracer"
)

// ErrUnknownWorkload is returned by Run for names not in Names.
var ErrUnknownWorkload = errors.New("unknown workload")

// Options sizes a workload.
type Options struct {
	Threads int // team size of every parallel region
	Size    int // problem size: matrix order, fib argument or task count
	Chunk   int // loop chunk, fib serial cutoff or task weight period
}

// Result is the value a workload computed, so runs can be checked.
type Result struct {
	Name  string
	Value float64
}

type program func(ctx context.Context, r *runner) (float64, error)

var programs = map[string]program{
	"fib":   runFib,
	"mm":    runMatMul,
	"tasks": runTasks,
}

// Names returns the available workloads in sorted order.
func Names() []string {
	names := make([]string, 0, len(programs))
	for n := range programs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Run executes the named workload, recording its events with tr. It starts
// the initial task but does not finalize the tracer.
func Run(ctx context.Context, name string, tr *tracer.Tracer, opts Options) (*Result, error) {
	prog, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (use one of %v)", ErrUnknownWorkload, name, Names())
	}
	if opts.Threads < 1 {
		return nil, fmt.Errorf("threads must be positive, got %d", opts.Threads)
	}
	if opts.Size < 0 {
		return nil, fmt.Errorf("size must not be negative, got %d", opts.Size)
	}
	if opts.Chunk < 1 {
		return nil, fmt.Errorf("chunk must be positive, got %d", opts.Chunk)
	}

	r := &runner{tr: tr, opts: opts}
	r.initial = tr.InitialTask(&tracer.Thread{Num: 0})

	slog.Info("running workload", "workload", name, "threads", opts.Threads, "size", opts.Size, "chunk", opts.Chunk)
	v, err := prog(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("workload %s: %w", name, err)
	}
	return &Result{Name: name, Value: v}, nil
}

// runner carries the state shared by the goroutines of one workload run.
type runner struct {
	tr      *tracer.Tracer
	opts    Options
	initial *tracer.Task

	threads []*tracer.Thread // team of the current region
	nextTh  atomic.Uint64
}

// parallel runs body on a team of opts.Threads goroutines inside one
// parallel region of the initial task. Each member ends with the implicit
// barrier of the region.
func (r *runner) parallel(ctx context.Context, body func(ctx context.Context, task *tracer.Task) error) error {
	n := r.opts.Threads
	region := r.tr.ParallelBegin(r.initial, n)
	bar := newTeamBarrier(n)

	r.threads = make([]*tracer.Thread, n)
	r.threads[0] = r.initial.Thread()
	for i := 1; i < n; i++ {
		r.threads[i] = &tracer.Thread{Num: i}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, th := range r.threads {
		eg.Go(func() error {
			task := r.tr.ImplicitTaskBegin(region, th)
			if err := body(ctx, task); err != nil {
				return err
			}
			r.tr.BarrierBegin(task)
			if err := bar.wait(ctx); err != nil {
				return err
			}
			r.tr.BarrierEnd(task)
			r.tr.ImplicitTaskEnd(task)
			return nil
		})
	}
	err := eg.Wait()
	r.tr.ParallelEnd(region)
	return err
}

// thread picks the team member an explicit task is reported on. Explicit
// tasks never run loops, so members can be shared.
func (r *runner) thread() *tracer.Thread {
	i := r.nextTh.Add(1) - 1
	return r.threads[i%uint64(len(r.threads))]
}

// spawn creates an explicit task of parent and runs body on it in eg.
func (r *runner) spawn(ctx context.Context, eg *errgroup.Group, parent *tracer.Task, body func(ctx context.Context, task *tracer.Task) error) {
	child := r.tr.TaskCreate(parent)
	eg.Go(func() error {
		r.tr.TaskSchedule(nil, child, r.thread())
		err := body(ctx, child)
		r.tr.TaskSchedule(child, nil, nil)
		return err
	})
}

// spawnQueued is spawn for tasks that must hold one of slots while running.
// A task starts accumulating time once it holds a slot.
func (r *runner) spawnQueued(ctx context.Context, eg *errgroup.Group, slots *semaphore.Weighted, parent *tracer.Task, body func(ctx context.Context, task *tracer.Task) error) {
	child := r.tr.TaskCreate(parent)
	eg.Go(func() error {
		if err := slots.Acquire(ctx, 1); err != nil {
			return err
		}
		defer slots.Release(1)
		r.tr.TaskSchedule(nil, child, r.thread())
		err := body(ctx, child)
		r.tr.TaskSchedule(child, nil, nil)
		return err
	})
}

// taskwait blocks until the tasks in eg finished and joins them to task.
// task is scheduled out while it waits so the wait is not counted as work.
func (r *runner) taskwait(task *tracer.Task, eg *errgroup.Group) error {
	th := task.Thread()
	r.tr.TaskSchedule(task, nil, nil)
	err := eg.Wait()
	r.tr.TaskSchedule(nil, task, th)
	r.tr.TaskWait(task)
	return err
}

// spin burns CPU proportionally to iters and returns a value depending on
// every iteration.
func spin(iters int) float64 {
	total := 5.0
	for i := 0; i < iters; i++ {
		total += total / float64(iters)
	}
	return total
}
