package workload

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sshudler/libtdg/internal/tracer"
)

// spinPerUnit is the amount of busy work behind one unit of task weight.
const spinPerUnit = 20000

// runMatMul multiplies two Size x Size matrices. Rows of the result are
// handed out to the team in chunks of Chunk rows on demand. Returns the sum
// of the product's elements.
func runMatMul(ctx context.Context, r *runner) (float64, error) {
	n := r.opts.Size
	a, b := make([]float64, n*n), make([]float64, n*n)
	c := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i*n+j] = float64(i + j)
			b[i*n+j] = float64(i * j)
		}
	}

	chunk := int64(r.opts.Chunk)
	var next atomic.Int64
	err := r.parallel(ctx, func(ctx context.Context, task *tracer.Task) error {
		r.tr.LoopBegin(task, 0, int64(n)-1)
		for {
			lo := next.Add(chunk) - chunk
			if lo >= int64(n) {
				r.tr.Chunk(task, 0, 0, true)
				break
			}
			hi := min(lo+chunk, int64(n)) - 1
			r.tr.Chunk(task, lo, hi, false)
			if err := ctx.Err(); err != nil {
				return err
			}
			multiplyRows(c, a, b, n, int(lo), int(hi))
		}
		r.tr.LoopEnd(task)
		return nil
	})
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, v := range c {
		sum += v
	}
	return sum, nil
}

// multiplyRows computes rows lo..hi of c = a*b.
func multiplyRows(c, a, b []float64, n, lo, hi int) {
	for i := lo; i <= hi; i++ {
		for j := 0; j < n; j++ {
			var s float64
			for k := 0; k < n; k++ {
				s += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = s
		}
	}
}

// runFib computes fib(Size) with one explicit task per recursive call above
// the Chunk cutoff. A single team member starts the computation; the others
// go straight to the region barrier.
func runFib(ctx context.Context, r *runner) (float64, error) {
	var result uint64
	err := r.parallel(ctx, func(ctx context.Context, task *tracer.Task) error {
		if task.Thread().Num != 0 {
			return nil
		}
		eg, ctx := errgroup.WithContext(ctx)
		r.spawn(ctx, eg, task, func(ctx context.Context, t *tracer.Task) error {
			v, err := r.fib(ctx, t, r.opts.Size)
			result = v
			return err
		})
		return r.taskwait(task, eg)
	})
	return float64(result), err
}

func (r *runner) fib(ctx context.Context, task *tracer.Task, n int) (uint64, error) {
	if n <= r.opts.Chunk {
		return fibSerial(n), nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var x, y uint64
	eg, ctx := errgroup.WithContext(ctx)
	r.spawn(ctx, eg, task, func(ctx context.Context, t *tracer.Task) (err error) {
		x, err = r.fib(ctx, t, n-1)
		return err
	})
	r.spawn(ctx, eg, task, func(ctx context.Context, t *tracer.Task) (err error) {
		y, err = r.fib(ctx, t, n-2)
		return err
	})
	err := r.taskwait(task, eg)
	return x + y, err
}

func fibSerial(n int) uint64 {
	a, b := uint64(0), uint64(1)
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}

// runTasks has one team member create Size independent explicit tasks of
// varying weight, at most Threads of them running at once, and wait for all.
// Returns the number of tasks that ran.
func runTasks(ctx context.Context, r *runner) (float64, error) {
	var done atomic.Int64
	err := r.parallel(ctx, func(ctx context.Context, task *tracer.Task) error {
		if task.Thread().Num != 0 {
			return nil
		}
		// Tasks queue for a slot on their own goroutine, so creating them
		// never stalls the creator.
		slots := semaphore.NewWeighted(int64(r.opts.Threads))
		eg, ctx := errgroup.WithContext(ctx)
		for i := 0; i < r.opts.Size; i++ {
			weight := i%r.opts.Chunk + 1
			r.spawnQueued(ctx, eg, slots, task, func(ctx context.Context, _ *tracer.Task) error {
				spin(weight * spinPerUnit)
				done.Add(1)
				return nil
			})
		}
		return r.taskwait(task, eg)
	})
	return float64(done.Load()), err
}
